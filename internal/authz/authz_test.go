package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
)

func int64p(v int64) *int64 { return &v }

func TestCheckManageSchools(t *testing.T) {
	cases := []struct {
		name  string
		scope tenantctx.Scope
		want  bool
	}{
		{"super_admin allowed", tenantctx.Scope{Role: models.RoleSuperAdmin}, true},
		{"school_admin denied", tenantctx.Scope{Role: models.RoleSchoolAdmin, SchoolID: int64p(1)}, false},
		{"parent denied", tenantctx.Scope{Role: models.RoleParent}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Check(tc.scope, PermManageSchools, Target{})
			assert.Equal(t, tc.want, decision.Allowed)
		})
	}
}

func TestCheckManageUsersInSchoolRequiresSameSchool(t *testing.T) {
	admin := tenantctx.Scope{Role: models.RoleSchoolAdmin, SchoolID: int64p(1)}

	assert.True(t, Check(admin, PermManageUsersInSchool, Target{SchoolID: int64p(1)}).Allowed)
	assert.False(t, Check(admin, PermManageUsersInSchool, Target{SchoolID: int64p(2)}).Allowed)
	assert.False(t, Check(admin, PermManageUsersInSchool, Target{}).Allowed, "nil target school_id must not match")
}

func TestCheckManageOwnProfile(t *testing.T) {
	parent := tenantctx.Scope{Role: models.RoleParent, UserID: 9}

	assert.True(t, Check(parent, PermManageOwnProfile, Target{UserID: int64p(9)}).Allowed)
	assert.False(t, Check(parent, PermManageOwnProfile, Target{UserID: int64p(10)}).Allowed)
	assert.True(t, Check(tenantctx.Scope{Role: models.RoleSuperAdmin}, PermManageOwnProfile, Target{UserID: int64p(10)}).Allowed)
}

func TestCheckOwnRegistrationPermissionsRequireOwningParent(t *testing.T) {
	parent := tenantctx.Scope{Role: models.RoleParent, UserID: 5}
	otherParent := tenantctx.Scope{Role: models.RoleParent, UserID: 6}
	schoolAdmin := tenantctx.Scope{Role: models.RoleSchoolAdmin, SchoolID: int64p(1)}

	for _, perm := range []Permission{PermEditOwnDraftRegistration, PermSubmitOwnRegistration, PermEnrollOwnRegistration, PermReadOwnRegistration} {
		assert.True(t, Check(parent, perm, Target{UserID: int64p(5)}).Allowed, perm)
		assert.False(t, Check(otherParent, perm, Target{UserID: int64p(5)}).Allowed, perm)
		assert.False(t, Check(schoolAdmin, perm, Target{UserID: int64p(5)}).Allowed, perm)
	}
}

func TestCheckReadOwnRegistrationAllowsTenantAdmins(t *testing.T) {
	target := Target{SchoolID: int64p(1), UserID: int64p(5)}

	assert.True(t, Check(tenantctx.Scope{Role: models.RoleSuperAdmin}, PermReadOwnRegistration, target).Allowed)
	assert.True(t, Check(tenantctx.Scope{Role: models.RoleSchoolAdmin, SchoolID: int64p(1)}, PermReadOwnRegistration, target).Allowed)
	assert.False(t, Check(tenantctx.Scope{Role: models.RoleSchoolAdmin, SchoolID: int64p(2)}, PermReadOwnRegistration, target).Allowed)
}

func TestCheckVerifyOrRejectAndRunSelection(t *testing.T) {
	superAdmin := tenantctx.Scope{Role: models.RoleSuperAdmin}
	ownAdmin := tenantctx.Scope{Role: models.RoleSchoolAdmin, SchoolID: int64p(1)}
	otherAdmin := tenantctx.Scope{Role: models.RoleSchoolAdmin, SchoolID: int64p(2)}

	for _, perm := range []Permission{PermVerifyOrReject, PermRunSelectionPipeline, PermReadTenantRegistrations} {
		target := Target{SchoolID: int64p(1)}
		assert.True(t, Check(superAdmin, perm, target).Allowed, perm)
		assert.True(t, Check(ownAdmin, perm, target).Allowed, perm)
		assert.False(t, Check(otherAdmin, perm, target).Allowed, perm)
	}
}

func TestCheckUnknownPermissionDenied(t *testing.T) {
	decision := Check(tenantctx.Scope{Role: models.RoleSuperAdmin}, Permission("nonsense"), Target{})
	assert.False(t, decision.Allowed)
	assert.NotEmpty(t, decision.Reason)
}
