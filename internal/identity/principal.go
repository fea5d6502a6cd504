package identity

import "strings"

// Principal is an authenticated caller, carrying roles and claims (spec
// §4.1).
type Principal struct {
	UserID  string
	IsAdmin bool
	Roles   []string
	Claims  Claims
}

// NewPrincipal builds a Principal and applies the admin-bypass rule: any role
// identifier ending in "_admin" promotes is_admin to true.
func NewPrincipal(userID string, roles []string, claims Claims) Principal {
	p := Principal{UserID: userID, Roles: roles, Claims: claims}
	for _, role := range roles {
		if strings.HasSuffix(role, "_admin") {
			p.IsAdmin = true
			break
		}
	}
	return p
}

// Permitted reports whether the principal may perform action on resource,
// optionally scoped to a resourceID and/or a minimum course role (spec
// §4.1/§4.2). An admin principal is always permitted.
func (p Principal) Permitted(resource, action string, resourceID string, courseRole string, hierarchy RoleHierarchy) bool {
	if p.IsAdmin {
		return true
	}
	if resourceID != "" && courseRole != "" {
		for _, held := range p.Claims.CourseRoleFor(resourceID) {
			if hierarchy.Satisfies(held, courseRole) {
				return true
			}
		}
	}
	if p.Claims.HasGeneral(resource, action) {
		return true
	}
	if resourceID != "" && p.Claims.HasDependent(resource, resourceID, action) {
		return true
	}
	return false
}

// HasCourseRole reports whether the principal holds at least requiredRole in
// courseID, per the course-role hierarchy.
func (p Principal) HasCourseRole(courseID, requiredRole string, hierarchy RoleHierarchy) bool {
	if p.IsAdmin {
		return true
	}
	for _, held := range p.Claims.CourseRoleFor(courseID) {
		if hierarchy.Satisfies(held, requiredRole) {
			return true
		}
	}
	return false
}

// CoursesWithRole returns every course id for which the principal holds at
// least requiredRole — the building block for course-scoped query filtering
// (spec §4.2).
func (p Principal) CoursesWithRole(requiredRole string, hierarchy RoleHierarchy) []string {
	var out []string
	for courseID, heldRoles := range p.Claims.Dependent["course"] {
		for _, held := range heldRoles {
			if hierarchy.Satisfies(held, requiredRole) {
				out = append(out, courseID)
				break
			}
		}
	}
	return out
}

// WithImplicitAuthoringClaims grants the implicit general claims spec §4.1
// assigns to principals holding _maintainer/_owner/_lecturer in any course:
// authoring assignments and up-/downloading examples.
func (p Principal) WithImplicitAuthoringClaims(hierarchy RoleHierarchy) Principal {
	for _, elevated := range []string{"_maintainer", "_owner", "_lecturer"} {
		if len(p.CoursesWithRole(elevated, hierarchy)) > 0 {
			p.Claims.AddGeneral("course_content", "create")
			p.Claims.AddGeneral("example", "download")
			p.Claims.AddGeneral("example", "upload")
			break
		}
	}
	return p
}

// WithDefaultReadClaims grants the unconditional read-only claims spec §4.1
// assigns to every principal for course_content_kind and course_role.
func (p Principal) WithDefaultReadClaims() Principal {
	p.Claims.AddGeneral("course_content_kind", "list")
	p.Claims.AddGeneral("course_content_kind", "get")
	p.Claims.AddGeneral("course_role", "list")
	p.Claims.AddGeneral("course_role", "get")
	return p
}
