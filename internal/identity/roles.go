package identity

// DefaultCourseRoleHierarchy is the configurable course-role inheritance model
// from spec §4.1: each role maps to the set of roles that satisfy a requirement
// for it (a user holding any role in the set satisfies the left-hand role).
var DefaultCourseRoleHierarchy = map[string][]string{
	"_owner":      {"_owner"},
	"_maintainer": {"_maintainer", "_owner"},
	"_lecturer":   {"_lecturer", "_maintainer", "_owner"},
	"_tutor":      {"_tutor", "_lecturer", "_maintainer", "_owner"},
	"_student":    {"_student", "_tutor", "_lecturer", "_maintainer", "_owner"},
}

// RoleHierarchy resolves which course roles satisfy a required role. It is a
// thin wrapper over a map so the hierarchy can be loaded from configuration
// without call sites changing (spec §4.1: "configurable; default").
type RoleHierarchy struct {
	allowed map[string][]string
}

// NewRoleHierarchy builds a hierarchy from an explicit mapping. Passing nil
// uses DefaultCourseRoleHierarchy.
func NewRoleHierarchy(mapping map[string][]string) RoleHierarchy {
	if mapping == nil {
		mapping = DefaultCourseRoleHierarchy
	}
	return RoleHierarchy{allowed: mapping}
}

// AllowedCourseRoleIDs returns the set of course_role_id values that satisfy a
// requirement for requiredRole. An unknown role resolves to an empty set.
func (h RoleHierarchy) AllowedCourseRoleIDs(requiredRole string) []string {
	ids, ok := h.allowed[requiredRole]
	if !ok {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Satisfies reports whether holding heldRole satisfies a requirement for
// requiredRole.
func (h RoleHierarchy) Satisfies(heldRole, requiredRole string) bool {
	for _, r := range h.AllowedCourseRoleIDs(requiredRole) {
		if r == heldRole {
			return true
		}
	}
	return false
}
