package authz

import "github.com/drewpayment/ctutor-controlplane/internal/identity"

// ReadOnlyHandler is for reference data anyone may list/get but only a
// broadly-claimed principal may mutate: ExecutionBackend, CourseRole,
// CourseContentKind, Example, ExampleRepository, ExampleVersion.
type ReadOnlyHandler struct {
	Resource string
}

func NewReadOnlyHandler(resource string) ReadOnlyHandler {
	return ReadOnlyHandler{Resource: resource}
}

func (h ReadOnlyHandler) CanPerform(p identity.Principal, action, resourceID string) bool {
	return p.Permitted(h.Resource, action, resourceID, "", identity.RoleHierarchy{})
}

func (h ReadOnlyHandler) BuildQuery(_ identity.Principal, action string, _ identity.RoleHierarchy) Decision {
	if action == "list" || action == "get" {
		return unrestricted()
	}
	return forbidden()
}

// ResultHandler is the Result entity's access rule: tutors and above see
// every result in courses they hold at least _tutor in; students see only
// their own results.
type ResultHandler struct {
	Resource string
}

func NewResultHandler(resource string) ResultHandler {
	return ResultHandler{Resource: resource}
}

func (h ResultHandler) CanPerform(p identity.Principal, action, resourceID string) bool {
	return p.Permitted(h.Resource, action, resourceID, "", identity.RoleHierarchy{})
}

func (h ResultHandler) BuildQuery(p identity.Principal, action string, hierarchy identity.RoleHierarchy) Decision {
	if action != "list" && action != "get" {
		return forbidden()
	}
	tutorCourses := p.CoursesWithRole("_tutor", hierarchy)
	return Decision{
		Permitted: true,
		Filter: Filter{
			CourseIDIn: tutorCourses,
			OwnUserID:  p.UserID,
		},
	}
}
