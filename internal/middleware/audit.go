package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
)

// Audit records an AuditEntry after a successful request.
func Audit(repo *repository.AuditRepository, action models.AuditAction, entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		scope, ok := tenantctx.FromContext(c.Request.Context())
		if !ok {
			return
		}

		entry := &models.AuditEntry{
			SchoolID:   scope.SchoolID,
			UserID:     &scope.UserID,
			EntityType: entityType,
			EntityID:   c.Param("id"),
			Action:     action,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
			CreatedAt:  time.Now().UTC(),
		}
		_ = repo.Create(c.Request.Context(), entry)
	}
}
