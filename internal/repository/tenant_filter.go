package repository

import (
	"fmt"
	"strings"

	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
)

// appendTenantFilter appends "column = $n" to conditions/args when scope is
// not super_admin: every generated query touching a tenant-owned table
// appends this predicate unless the caller is a super_admin.
func appendTenantFilter(conditions *[]string, args *[]interface{}, scope tenantctx.Scope, column string) {
	if scope.IsSuperAdmin() || scope.SchoolID == nil {
		return
	}
	*args = append(*args, *scope.SchoolID)
	*conditions = append(*conditions, fmt.Sprintf("%s = $%d", column, len(*args)))
}

// appendOwnerFilter additionally restricts to the caller's own rows when
// the caller is a parent: parent-owned registrations are filtered by
// user_id in addition to school_id.
func appendOwnerFilter(conditions *[]string, args *[]interface{}, scope tenantctx.Scope, column string, isParentScoped bool) {
	if !isParentScoped {
		return
	}
	*args = append(*args, scope.UserID)
	*conditions = append(*conditions, fmt.Sprintf("%s = $%d", column, len(*args)))
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}
