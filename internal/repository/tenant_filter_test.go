package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
)

func int64p(v int64) *int64 { return &v }

func TestAppendTenantFilterSuperAdminUnfiltered(t *testing.T) {
	conditions := []string{"id = $1"}
	args := []interface{}{1}
	appendTenantFilter(&conditions, &args, tenantctx.Scope{Role: models.RoleSuperAdmin, SchoolID: int64p(7)}, "school_id")

	assert.Equal(t, []string{"id = $1"}, conditions)
	assert.Equal(t, []interface{}{1}, args)
}

func TestAppendTenantFilterNilSchoolIDUnfiltered(t *testing.T) {
	conditions := []string{"id = $1"}
	args := []interface{}{1}
	appendTenantFilter(&conditions, &args, tenantctx.Scope{Role: models.RoleSchoolAdmin}, "school_id")

	assert.Equal(t, []string{"id = $1"}, conditions)
	assert.Equal(t, []interface{}{1}, args)
}

func TestAppendTenantFilterScopedAdminAppendsPredicate(t *testing.T) {
	conditions := []string{"id = $1"}
	args := []interface{}{1}
	appendTenantFilter(&conditions, &args, tenantctx.Scope{Role: models.RoleSchoolAdmin, SchoolID: int64p(7)}, "school_id")

	assert.Equal(t, []string{"id = $1", "school_id = $2"}, conditions)
	assert.Equal(t, []interface{}{1, int64(7)}, args)
}

func TestAppendOwnerFilterOnlyWhenParentScoped(t *testing.T) {
	conditions := []string{"id = $1"}
	args := []interface{}{1}
	appendOwnerFilter(&conditions, &args, tenantctx.Scope{Role: models.RoleSchoolAdmin}, "user_id", false)
	assert.Equal(t, []string{"id = $1"}, conditions)

	appendOwnerFilter(&conditions, &args, tenantctx.Scope{Role: models.RoleParent, UserID: 42}, "user_id", true)
	assert.Equal(t, []string{"id = $1", "user_id = $2"}, conditions)
	assert.Equal(t, []interface{}{1, int64(42)}, args)
}

func TestWhereClause(t *testing.T) {
	assert.Equal(t, "", whereClause(nil))
	assert.Equal(t, " WHERE a = $1", whereClause([]string{"a = $1"}))
	assert.Equal(t, " WHERE a = $1 AND b = $2", whereClause([]string{"a = $1", "b = $2"}))
}
