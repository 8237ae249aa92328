package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/ppdb-nexus/admissions-api/api/swagger"
	"github.com/ppdb-nexus/admissions-api/internal/handler"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	"github.com/ppdb-nexus/admissions-api/internal/service"
	"github.com/ppdb-nexus/admissions-api/pkg/cache"
	"github.com/ppdb-nexus/admissions-api/pkg/config"
	"github.com/ppdb-nexus/admissions-api/pkg/database"
	"github.com/ppdb-nexus/admissions-api/pkg/export"
	"github.com/ppdb-nexus/admissions-api/pkg/hash"
	"github.com/ppdb-nexus/admissions-api/pkg/jobs"
	"github.com/ppdb-nexus/admissions-api/pkg/logger"
	corsmiddleware "github.com/ppdb-nexus/admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ppdb-nexus/admissions-api/pkg/middleware/requestid"
	"github.com/ppdb-nexus/admissions-api/pkg/notify"
	"github.com/ppdb-nexus/admissions-api/pkg/storage"
	"github.com/ppdb-nexus/admissions-api/pkg/tokencodec"
)

// @title PPDB Admissions API
// @version 1.0.0
// @description Multi-tenant PPDB admissions backend: registration lifecycle, verification, scoring and selection.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	// Redis backs the read-through Catalog cache. Its absence
	// must never break correctness, so a connection failure only disables
	// caching rather than aborting startup.
	redisClient := mustRedisOrNil(cfg, sugar)
	if redisClient != nil {
		defer redisClient.Close()
	}

	store := repository.NewStore(db)
	schoolRepo := repository.NewSchoolRepository(db)
	userRepo := repository.NewUserRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	pathRepo := repository.NewPathRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	// FederatedIdentity is a Store-level entity consumed only by
	// the optional external identity-sync collaborator; no core operation
	// calls it, so it is constructed here and left otherwise unwired.
	_ = repository.NewFederatedIdentityRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	hasher := hash.NewBcryptHasher()
	tokenCodec := tokencodec.NewCodec(cfg.JWT.Secret, "ppdb-admissions-api", cfg.JWT.Expiration, cfg.JWT.RefreshExpiration)
	validate := validator.New()

	var notifier notify.Sink
	if cfg.Notification.Enabled && cfg.Notification.WebhookURL != "" {
		notifier = notify.NewWebhookSink(cfg.Notification.WebhookURL, logr)
	} else {
		notifier = notify.NewLogSink(logr)
	}

	docStorage, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		sugar.Fatalw("failed to init document storage", "error", err)
	}
	docSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, 10*time.Minute, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, auditRepo, hasher, tokenCodec, notifier, validate, logr, service.AuthConfig{
		RefreshTokenExpiry:    cfg.JWT.RefreshExpiration,
		ResetPasswordTokenTTL: time.Hour,
	})
	userSvc := service.NewUserService(userRepo, hasher, logr)
	schoolSvc := service.NewSchoolService(schoolRepo, userRepo, cacheSvc, logr)
	periodSvc := service.NewPeriodService(store, periodRepo, logr)
	pathSvc := service.NewPathService(periodRepo, pathRepo, logr)
	documentSvc := service.NewDocumentService(store, documentRepo, logr)
	registrationSvc := service.NewRegistrationService(store, registrationRepo, periodRepo, pathRepo, documentSvc, logr)
	verificationSvc := service.NewVerificationService(store, registrationRepo, documentRepo, auditRepo, logr)
	selectionSvc := service.NewSelectionService(store, registrationRepo, periodRepo, pathRepo, documentRepo, notifier, logr)

	csvExporter := export.NewCSVExporter()
	pdfExporter := export.NewPDFExporter()

	handlers := handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		School:       handler.NewSchoolHandler(schoolSvc),
		User:         handler.NewUserHandler(userSvc),
		Period:       handler.NewPeriodHandler(periodSvc),
		Path:         handler.NewPathHandler(pathSvc),
		Registration: handler.NewRegistrationHandler(registrationSvc),
		Document:     handler.NewDocumentHandler(registrationSvc, documentSvc, docStorage, docSigner),
		Verification: handler.NewVerificationHandler(verificationSvc),
		Selection:    handler.NewSelectionHandler(selectionSvc, csvExporter),
		Announcement: handler.NewAnnouncementHandler(selectionSvc, pdfExporter),
		Metrics:      handler.NewMetricsHandler(metricsSvc),
	}

	router := handler.NewRouter(cfg.APIPrefix, handler.RouterDeps{
		Handlers:      handlers,
		AuthService:   authSvc,
		Audit:         auditRepo,
		Metrics:       metricsSvc,
		Users:         userRepo,
		Registrations: registrationRepo,
		Documents:     documentRepo,
	}, reqidmiddleware.Middleware(), logger.GinMiddleware(logr), corsmiddleware.New(cfg.CORS.AllowedOrigins))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	expirySweep := newExpirySweepQueue(registrationSvc, sugar)
	expirySweep.Start(ctx)
	defer expirySweep.Stop()
	scheduleExpirySweeps(ctx, expirySweep, sugar)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		sugar.Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
}

// mustRedisOrNil connects to Redis for the read-through cache. A failure
// here is logged and treated as "caching disabled", never as fatal:
// correctness must not depend on cache presence.
func mustRedisOrNil(cfg *config.Config, sugar *zap.SugaredLogger) *redis.Client {
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		sugar.Warnw("redis unavailable, running without cache", "error", err)
		return nil
	}
	return client
}

// expireRegistrationsJobType names the single recurring job the sweep
// queue processes.
const expireRegistrationsJobType = "expire_registrations"

// newExpirySweepQueue wraps RegistrationService.ExpireStale in a
// single-worker jobs.Queue, matching the ambient worker-pool pattern used
// for report generation elsewhere in the pack.
func newExpirySweepQueue(registrations *service.RegistrationService, sugar *zap.SugaredLogger) *jobs.Queue {
	return jobs.NewQueue("registration-expiry", func(ctx context.Context, _ jobs.Job) error {
		count, err := registrations.ExpireStale(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			sugar.Infow("expired stale registrations", "count", count)
		}
		return nil
	}, jobs.QueueConfig{Workers: 1, BufferSize: 1, MaxRetries: 1})
}

// scheduleExpirySweeps enqueues the idempotent expire pass on a fixed
// interval until ctx is cancelled.
func scheduleExpirySweeps(ctx context.Context, queue *jobs.Queue, sugar *zap.SugaredLogger) {
	ticker := time.NewTicker(time.Hour)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := queue.Enqueue(jobs.Job{Type: expireRegistrationsJobType}); err != nil {
					sugar.Warnw("failed to enqueue expiry sweep", "error", err)
				}
			}
		}
	}()
}
