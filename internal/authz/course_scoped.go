package authz

import "github.com/drewpayment/ctutor-controlplane/internal/identity"

// CourseScopedHandler narrows access to entities reachable through course
// membership: Organization, CourseFamily, Course, CourseContent,
// CourseContentType, CourseExecutionBackend, CourseGroup, CourseMember.
// Each action maps to the minimum course role required to see matching rows;
// an action absent from minRole is forbidden once the broad claim check
// fails.
type CourseScopedHandler struct {
	Resource string
	MinRole  map[string]string
}

func NewCourseScopedHandler(resource string, minRole map[string]string) CourseScopedHandler {
	return CourseScopedHandler{Resource: resource, MinRole: minRole}
}

func (h CourseScopedHandler) CanPerform(p identity.Principal, action, resourceID string) bool {
	return p.Permitted(h.Resource, action, resourceID, "", identity.RoleHierarchy{})
}

func (h CourseScopedHandler) BuildQuery(p identity.Principal, action string, hierarchy identity.RoleHierarchy) Decision {
	required, ok := h.MinRole[action]
	if !ok {
		return forbidden()
	}
	courses := p.CoursesWithRole(required, hierarchy)
	if len(courses) == 0 {
		return forbidden()
	}
	return scopedToCourses(courses)
}

// CourseGroupHandler is CourseScopedHandler augmented with a self-view
// carve-out: a _student may always see the CourseGroup they themselves
// belong to, even without the handler's minimum role for get/list.
type CourseGroupHandler struct {
	CourseScopedHandler
}

func NewCourseGroupHandler(resource string, minRole map[string]string) CourseGroupHandler {
	return CourseGroupHandler{NewCourseScopedHandler(resource, minRole)}
}

func (h CourseGroupHandler) BuildQuery(p identity.Principal, action string, hierarchy identity.RoleHierarchy) Decision {
	d := h.CourseScopedHandler.BuildQuery(p, action, hierarchy)
	if d.Permitted {
		return d
	}
	if action != "get" && action != "list" {
		return d
	}
	ownCourses := p.CoursesWithRole("_student", hierarchy)
	if len(ownCourses) == 0 {
		return d
	}
	return Decision{
		Permitted: true,
		Filter: Filter{
			CourseIDIn: ownCourses,
			OwnUserID:  p.UserID,
		},
	}
}
