package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ppdb-nexus/admissions-api/internal/authz"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/response"
)

// RequirePermission enforces a named permission against the caller's bound
// scope; handlers never consult role directly. targetFn, when non-nil, is
// derived from the request before the handler runs, e.g. the school_id
// path parameter being modified.
func RequirePermission(perm authz.Permission, targetFn func(c *gin.Context) authz.Target) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := tenantctx.FromContext(c.Request.Context())
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		var target authz.Target
		if targetFn != nil {
			target = targetFn(c)
		}

		decision := authz.Check(scope, perm, target)
		if !decision.Allowed {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, decision.Reason))
			c.Abort()
			return
		}
		c.Next()
	}
}

// NoTarget is a targetFn for permissions that never need a per-request
// target (e.g. PermManageSchools).
func NoTarget(*gin.Context) authz.Target {
	return authz.Target{}
}
