// Package tenantctx carries the caller's tenant scope through a request.
// The JWT middleware binds it into the request context; handlers read it
// back and pass it explicitly to services and repositories.
package tenantctx

import (
	"context"

	"github.com/ppdb-nexus/admissions-api/internal/models"
)

type scopeKey struct{}

// Scope is bound into the request context at authentication time.
// Repository queries on tenant-owned tables take it as a parameter, and
// Store.WithTx mirrors the context-bound scope into the transaction.
type Scope struct {
	Role     models.Role
	SchoolID *int64
	UserID   int64
}

// IsSuperAdmin reports whether the scope bypasses tenant filtering.
func (s Scope) IsSuperAdmin() bool {
	return s.Role == models.RoleSuperAdmin
}

// WithScope returns a context carrying the given scope.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// FromContext extracts the bound scope, if any.
func FromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(Scope)
	return scope, ok
}
