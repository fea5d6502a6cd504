package authz

import "github.com/drewpayment/ctutor-controlplane/internal/identity"

// SelfOnlyHandler narrows list/get(/update) access to rows owned by the
// calling principal: Account, Profile.
type SelfOnlyHandler struct {
	Resource     string
	AllowUpdate  bool
}

func NewSelfOnlyHandler(resource string, allowUpdate bool) SelfOnlyHandler {
	return SelfOnlyHandler{Resource: resource, AllowUpdate: allowUpdate}
}

func (h SelfOnlyHandler) CanPerform(p identity.Principal, action, resourceID string) bool {
	return p.Permitted(h.Resource, action, resourceID, "", identity.RoleHierarchy{})
}

func (h SelfOnlyHandler) BuildQuery(p identity.Principal, action string, _ identity.RoleHierarchy) Decision {
	switch action {
	case "list", "get":
		return Decision{Permitted: true, Filter: Filter{OwnUserID: p.UserID}}
	case "update":
		if h.AllowUpdate {
			return Decision{Permitted: true, Filter: Filter{OwnUserID: p.UserID}}
		}
	}
	return forbidden()
}

// SelfOrTutorHandler is the User entity's access rule: a principal may always
// see itself, plus any user that shares a course where the principal holds
// at least _tutor.
type SelfOrTutorHandler struct {
	Resource string
}

func NewSelfOrTutorHandler(resource string) SelfOrTutorHandler {
	return SelfOrTutorHandler{Resource: resource}
}

func (h SelfOrTutorHandler) CanPerform(p identity.Principal, action, resourceID string) bool {
	return p.Permitted(h.Resource, action, resourceID, "", identity.RoleHierarchy{})
}

func (h SelfOrTutorHandler) BuildQuery(p identity.Principal, action string, hierarchy identity.RoleHierarchy) Decision {
	if action != "list" && action != "get" {
		return forbidden()
	}
	return Decision{
		Permitted: true,
		Filter: Filter{
			OwnUserID:  p.UserID,
			CourseIDIn: p.CoursesWithRole("_tutor", hierarchy),
		},
	}
}
