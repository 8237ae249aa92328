// Package authz implements the permission matrix Handlers
// never consult role directly; they call a named permission so the policy
// table stays the single place access rules live.
package authz

import (
	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
)

// Permission is the closed set of named actions the matrix decides.
type Permission string

const (
	PermManageSchools           Permission = "manage_schools"
	PermManageUsersInSchool     Permission = "manage_users_in_school"
	PermManageOwnProfile        Permission = "manage_own_profile"
	PermManagePeriodsAndPaths   Permission = "manage_periods_and_paths"
	PermEditOwnDraftRegistration Permission = "edit_own_draft_registration"
	PermSubmitOwnRegistration   Permission = "submit_own_registration"
	PermEnrollOwnRegistration   Permission = "enroll_own_registration"
	PermVerifyOrReject          Permission = "verify_or_reject"
	PermRunSelectionPipeline    Permission = "run_selection_pipeline"
	PermReadTenantRegistrations Permission = "read_tenant_registrations"
	PermReadOwnRegistration     Permission = "read_own_registration"
)

// Target optionally names the resource owner so ownership-scoped
// permissions (parent reading their own registration) can be decided.
type Target struct {
	SchoolID *int64
	UserID   *int64
}

// Decision is the outcome of a Check call.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision  { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Check decides whether the principal in scope may perform perm against
// target.
func Check(scope tenantctx.Scope, perm Permission, target Target) Decision {
	switch perm {
	case PermManageSchools:
		if scope.Role == models.RoleSuperAdmin {
			return allow()
		}
		return deny("only super_admin manages schools")

	case PermManageUsersInSchool:
		if scope.Role == models.RoleSuperAdmin {
			return allow()
		}
		if scope.Role == models.RoleSchoolAdmin && sameSchool(scope, target) {
			return allow()
		}
		return deny("only super_admin or the school's own admin manages its users")

	case PermManageOwnProfile:
		if target.UserID != nil && *target.UserID == scope.UserID {
			return allow()
		}
		if scope.Role == models.RoleSuperAdmin || scope.Role == models.RoleSchoolAdmin {
			return allow()
		}
		return deny("may only manage own profile")

	case PermManagePeriodsAndPaths:
		if scope.Role == models.RoleSuperAdmin {
			return allow()
		}
		if scope.Role == models.RoleSchoolAdmin && sameSchool(scope, target) {
			return allow()
		}
		return deny("only super_admin or the owning school_admin manages periods and paths")

	case PermEditOwnDraftRegistration, PermSubmitOwnRegistration, PermEnrollOwnRegistration:
		if scope.Role == models.RoleParent && target.UserID != nil && *target.UserID == scope.UserID {
			return allow()
		}
		return deny("only the owning parent may act on this registration")

	case PermVerifyOrReject, PermRunSelectionPipeline, PermReadTenantRegistrations:
		if scope.Role == models.RoleSuperAdmin {
			return allow()
		}
		if scope.Role == models.RoleSchoolAdmin && sameSchool(scope, target) {
			return allow()
		}
		return deny("requires super_admin or the owning school_admin")

	case PermReadOwnRegistration:
		if scope.Role == models.RoleParent && target.UserID != nil && *target.UserID == scope.UserID {
			return allow()
		}
		if scope.Role == models.RoleSuperAdmin {
			return allow()
		}
		if scope.Role == models.RoleSchoolAdmin && sameSchool(scope, target) {
			return allow()
		}
		return deny("requires the owning parent, or super_admin/the owning school_admin")

	default:
		return deny("unknown permission")
	}
}

func sameSchool(scope tenantctx.Scope, target Target) bool {
	if scope.SchoolID == nil || target.SchoolID == nil {
		return false
	}
	return *scope.SchoolID == *target.SchoolID
}
