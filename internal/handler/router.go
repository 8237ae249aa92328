package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ppdb-nexus/admissions-api/internal/authz"
	"github.com/ppdb-nexus/admissions-api/internal/middleware"
	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	"github.com/ppdb-nexus/admissions-api/internal/service"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
)

// Handlers bundles every HTTP-facing component the router wires together.
type Handlers struct {
	Auth         *AuthHandler
	School       *SchoolHandler
	User         *UserHandler
	Period       *PeriodHandler
	Path         *PathHandler
	Registration *RegistrationHandler
	Document     *DocumentHandler
	Verification *VerificationHandler
	Selection    *SelectionHandler
	Announcement *AnnouncementHandler
	Metrics      *MetricsHandler
}

// RouterDeps carries the shared collaborators route registration needs
// beyond the handler structs themselves: auth for JWT middleware, audit
// and metrics for the ambient stack, and the raw repositories permission
// targets resolve against (a target names the resource owner
// before RequirePermission consults the matrix).
type RouterDeps struct {
	Handlers      Handlers
	AuthService   *service.AuthService
	Audit         *repository.AuditRepository
	Metrics       *service.MetricsService
	Users         *repository.UserRepository
	Registrations *repository.RegistrationRepository
	Documents     *repository.DocumentRepository
}

// NewRouter builds the full Gin engine, registering one route group per
// API resource under cfg.APIPrefix.
func NewRouter(prefix string, deps RouterDeps, globalMiddleware ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Metrics(deps.Metrics))
	for _, mw := range globalMiddleware {
		engine.Use(mw)
	}

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	engine.GET("/healthz", deps.Handlers.Metrics.Health)
	engine.GET("/metrics", deps.Handlers.Metrics.Prometheus)

	api := engine.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", deps.Handlers.Auth.Register)
		auth.POST("/login", deps.Handlers.Auth.Login)
		auth.POST("/refresh", deps.Handlers.Auth.Refresh)
		auth.POST("/verify-email", deps.Handlers.Auth.VerifyEmail)
		auth.POST("/forgot-password", deps.Handlers.Auth.ForgotPassword)
		auth.POST("/reset-password", deps.Handlers.Auth.ResetPassword)
		auth.POST("/logout", middleware.JWT(deps.AuthService), deps.Handlers.Auth.Logout)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.AuthService))

	selfTarget := func(c *gin.Context) authz.Target {
		scope, _ := tenantctx.FromContext(c.Request.Context())
		id := scope.UserID
		return authz.Target{UserID: &id}
	}
	userByIDTarget := func(c *gin.Context) authz.Target {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return authz.Target{}
		}
		return authz.Target{UserID: &id}
	}
	userSchoolTarget := func(c *gin.Context) authz.Target {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return authz.Target{}
		}
		user, err := deps.Users.GetByID(c.Request.Context(), tenantctx.Scope{Role: models.RoleSuperAdmin}, id)
		if err != nil {
			return authz.Target{}
		}
		return authz.Target{SchoolID: user.SchoolID}
	}
	registrationOwnerTarget := func(c *gin.Context) authz.Target {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return authz.Target{}
		}
		reg, err := deps.Registrations.GetByID(c.Request.Context(), tenantctx.Scope{Role: models.RoleSuperAdmin}, id)
		if err != nil {
			return authz.Target{}
		}
		return authz.Target{SchoolID: &reg.SchoolID, UserID: &reg.UserID}
	}

	users := authed.Group("/users")
	{
		users.GET("/me", deps.Handlers.User.Me)
		users.PUT("/me", deps.Handlers.User.UpdateMe)
		users.POST("/me/change-password", deps.Handlers.Auth.ChangePassword)
		users.POST("", middleware.RequirePermission(authz.PermManageUsersInSchool, middleware.NoTarget), middleware.Audit(deps.Audit, models.AuditActionCreate, "user"), deps.Handlers.User.Create)
		users.GET("", middleware.RequirePermission(authz.PermManageUsersInSchool, middleware.NoTarget), deps.Handlers.User.List)
		users.GET("/:id", middleware.RequirePermission(authz.PermManageOwnProfile, userByIDTarget), deps.Handlers.User.Get)
		users.PUT("/:id", middleware.RequirePermission(authz.PermManageOwnProfile, userByIDTarget), middleware.Audit(deps.Audit, models.AuditActionUpdate, "user"), deps.Handlers.User.Update)
		users.DELETE("/:id", middleware.RequirePermission(authz.PermManageUsersInSchool, userSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionDelete, "user"), deps.Handlers.User.Delete)
	}

	schools := authed.Group("/schools")
	{
		schools.POST("", middleware.RequirePermission(authz.PermManageSchools, middleware.NoTarget), middleware.Audit(deps.Audit, models.AuditActionCreate, "school"), deps.Handlers.School.Create)
		schools.GET("", deps.Handlers.School.List)
		schools.GET("/:id", deps.Handlers.School.Get)
		schools.PUT("/:id", middleware.RequirePermission(authz.PermManageSchools, middleware.NoTarget), middleware.Audit(deps.Audit, models.AuditActionUpdate, "school"), deps.Handlers.School.Update)
		schools.PATCH("/:id/status", middleware.RequirePermission(authz.PermManageSchools, middleware.NoTarget), middleware.Audit(deps.Audit, models.AuditActionUpdate, "school"), deps.Handlers.School.SetStatus)
	}

	periodSchoolTarget := func(c *gin.Context) authz.Target {
		scope, _ := tenantctx.FromContext(c.Request.Context())
		return authz.Target{SchoolID: scope.SchoolID}
	}

	periods := authed.Group("/periods")
	{
		periods.POST("", middleware.RequirePermission(authz.PermManagePeriodsAndPaths, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionCreate, "period"), deps.Handlers.Period.Create)
		periods.GET("", deps.Handlers.Period.List)
		periods.GET("/:id", deps.Handlers.Period.Get)
		periods.PUT("/:id", middleware.RequirePermission(authz.PermManagePeriodsAndPaths, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionUpdate, "period"), deps.Handlers.Period.Update)
		periods.DELETE("/:id", middleware.RequirePermission(authz.PermManagePeriodsAndPaths, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionDelete, "period"), deps.Handlers.Period.Delete)
		periods.POST("/:id/activate", middleware.RequirePermission(authz.PermManagePeriodsAndPaths, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionUpdate, "period"), deps.Handlers.Period.Activate)
		periods.POST("/:id/close", middleware.RequirePermission(authz.PermManagePeriodsAndPaths, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionUpdate, "period"), deps.Handlers.Period.Close)

		periods.POST("/:period_id/paths", middleware.RequirePermission(authz.PermManagePeriodsAndPaths, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionCreate, "path"), deps.Handlers.Path.Create)
		periods.GET("/:period_id/paths", deps.Handlers.Path.ListByPeriod)

		periods.POST("/:period_id/registrations", middleware.RequirePermission(authz.PermEditOwnDraftRegistration, selfTarget), middleware.Audit(deps.Audit, models.AuditActionCreate, "registration"), deps.Handlers.Registration.Create)

		periods.GET("/:period_id/verification/pending", middleware.RequirePermission(authz.PermVerifyOrReject, periodSchoolTarget), deps.Handlers.Verification.ListPending)
		periods.GET("/:period_id/verification/stats", middleware.RequirePermission(authz.PermVerifyOrReject, periodSchoolTarget), deps.Handlers.Verification.Stats)

		periods.POST("/:period_id/selection/scores", middleware.RequirePermission(authz.PermRunSelectionPipeline, periodSchoolTarget), deps.Handlers.Selection.CalculateScores)
		periods.POST("/:period_id/selection/rankings", middleware.RequirePermission(authz.PermRunSelectionPipeline, periodSchoolTarget), deps.Handlers.Selection.UpdateRankings)
		periods.POST("/:period_id/selection/run", middleware.RequirePermission(authz.PermRunSelectionPipeline, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionRunSelection, "period"), deps.Handlers.Selection.RunSelection)
		periods.GET("/:period_id/selection/export.csv", middleware.RequirePermission(authz.PermRunSelectionPipeline, periodSchoolTarget), deps.Handlers.Selection.ExportCSV)

		periods.POST("/:period_id/announce", middleware.RequirePermission(authz.PermRunSelectionPipeline, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionAnnounce, "period"), deps.Handlers.Announcement.Announce)
	}

	paths := authed.Group("/paths")
	{
		paths.GET("/:id", deps.Handlers.Path.Get)
		paths.PUT("/:id", middleware.RequirePermission(authz.PermManagePeriodsAndPaths, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionUpdate, "path"), deps.Handlers.Path.Update)
		paths.DELETE("/:id", middleware.RequirePermission(authz.PermManagePeriodsAndPaths, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionDelete, "path"), deps.Handlers.Path.Delete)
		paths.PATCH("/:id/quota", middleware.RequirePermission(authz.PermManagePeriodsAndPaths, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionUpdate, "path"), deps.Handlers.Path.UpdateQuota)
		paths.PATCH("/:id/scoring-config", middleware.RequirePermission(authz.PermManagePeriodsAndPaths, periodSchoolTarget), middleware.Audit(deps.Audit, models.AuditActionUpdate, "path"), deps.Handlers.Path.UpdateScoringConfig)
	}

	registrations := authed.Group("/registrations")
	{
		registrations.GET("", middleware.RequirePermission(authz.PermReadTenantRegistrations, periodSchoolTarget), deps.Handlers.Registration.List)
		registrations.GET("/:id", middleware.RequirePermission(authz.PermReadOwnRegistration, registrationOwnerTarget), deps.Handlers.Registration.Get)
		registrations.PUT("/:id", middleware.RequirePermission(authz.PermEditOwnDraftRegistration, registrationOwnerTarget), middleware.Audit(deps.Audit, models.AuditActionUpdate, "registration"), deps.Handlers.Registration.Update)
		registrations.POST("/:id/submit", middleware.RequirePermission(authz.PermSubmitOwnRegistration, registrationOwnerTarget), middleware.Audit(deps.Audit, models.AuditActionSubmit, "registration"), deps.Handlers.Registration.Submit)
		registrations.POST("/:id/enroll", middleware.RequirePermission(authz.PermEnrollOwnRegistration, registrationOwnerTarget), middleware.Audit(deps.Audit, models.AuditActionUpdate, "registration"), deps.Handlers.Registration.Enroll)
		registrations.POST("/:id/verify", middleware.RequirePermission(authz.PermVerifyOrReject, registrationOwnerTarget), middleware.Audit(deps.Audit, models.AuditActionVerify, "registration"), deps.Handlers.Verification.Verify)
		registrations.POST("/:id/reject", middleware.RequirePermission(authz.PermVerifyOrReject, registrationOwnerTarget), middleware.Audit(deps.Audit, models.AuditActionReject, "registration"), deps.Handlers.Verification.Reject)

		registrations.POST("/:id/documents", middleware.RequirePermission(authz.PermEditOwnDraftRegistration, registrationOwnerTarget), deps.Handlers.Document.Upload)
		registrations.GET("/:id/documents", middleware.RequirePermission(authz.PermReadOwnRegistration, registrationOwnerTarget), deps.Handlers.Document.List)
		registrations.POST("/:id/documents/:doc_id/download", middleware.RequirePermission(authz.PermReadOwnRegistration, registrationOwnerTarget), deps.Handlers.Document.Download)
		registrations.DELETE("/:id/documents/:doc_id", middleware.RequirePermission(authz.PermEditOwnDraftRegistration, registrationOwnerTarget), deps.Handlers.Document.Detach)
	}

	documentSchoolTarget := func(c *gin.Context) authz.Target {
		docID, err := strconv.ParseInt(c.Param("doc_id"), 10, 64)
		if err != nil {
			return authz.Target{}
		}
		doc, err := deps.Documents.GetByID(c.Request.Context(), docID)
		if err != nil {
			return authz.Target{}
		}
		reg, err := deps.Registrations.GetByID(c.Request.Context(), tenantctx.Scope{Role: models.RoleSuperAdmin}, doc.RegistrationID)
		if err != nil {
			return authz.Target{}
		}
		return authz.Target{SchoolID: &reg.SchoolID}
	}

	documents := authed.Group("/documents")
	{
		documents.POST("/:doc_id/verify", middleware.RequirePermission(authz.PermVerifyOrReject, documentSchoolTarget), deps.Handlers.Verification.VerifyDocument)
	}

	// Public, unauthenticated result lookup: reachable outside
	// the authed group entirely, since applicants may not hold an account.
	public := api.Group("/public")
	{
		public.GET("/announcements/check-result", deps.Handlers.Announcement.CheckResult)
		public.GET("/announcements/result.pdf", deps.Handlers.Announcement.ResultPDF)
		public.GET("/documents/download/:token", deps.Handlers.Document.ServeSignedDownload)
	}

	return engine
}
