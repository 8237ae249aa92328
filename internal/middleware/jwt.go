package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/service"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// JWT protects routes by requiring a valid access token and binds the
// caller's tenant scope onto the request context (scope is bound
// at request start, not threaded as a parameter).
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parseBearer(c, authService)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		bindScope(c, claims)
		c.Next()
	}
}

// OptionalJWT attaches claims and scope when present but never blocks,
// for endpoints like the public result lookup that behave differently for
// authenticated parents without requiring authentication.
func OptionalJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parseBearer(c, authService)
		if err != nil || claims == nil {
			c.Next()
			return
		}
		bindScope(c, claims)
		c.Next()
	}
}

func parseBearer(c *gin.Context, authService *service.AuthService) (*models.JWTClaims, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, nil
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}

	claims, err := authService.ValidateToken(c.Request.Context(), parts[1])
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func bindScope(c *gin.Context, claims *models.JWTClaims) {
	c.Set(ContextUserKey, claims)
	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return
	}
	scope := tenantctx.Scope{
		Role:     claims.Role,
		SchoolID: claims.SchoolID,
		UserID:   userID,
	}
	c.Request = c.Request.WithContext(tenantctx.WithScope(c.Request.Context(), scope))
}
