package authz

import (
	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/drewpayment/ctutor-controlplane/internal/identity"
)

// Entity name constants, matching the store package's table names.
const (
	EntityUser                   = "user"
	EntityAccount                = "account"
	EntityProfile                = "profile"
	EntityOrganization           = "organization"
	EntityCourseFamily           = "course_family"
	EntityCourse                 = "course"
	EntityCourseContent          = "course_content"
	EntityCourseContentType      = "course_content_type"
	EntityCourseContentKind      = "course_content_kind"
	EntityCourseExecutionBackend = "course_execution_backend"
	EntityCourseGroup            = "course_group"
	EntityCourseMember           = "course_member"
	EntityCourseMemberComment    = "course_member_comment"
	EntityCourseRole             = "course_role"
	EntityExecutionBackend       = "execution_backend"
	EntityExample                = "example"
	EntityExampleRepository      = "example_repository"
	EntityExampleVersion         = "example_version"
	EntityResult                 = "result"
)

// Registry dispatches authorization decisions by entity name.
type Registry struct {
	hierarchy identity.RoleHierarchy
	handlers  map[string]Handler
}

// NewRegistry builds the default entity->handler wiring (spec §4.2).
func NewRegistry(hierarchy identity.RoleHierarchy) *Registry {
	studentMin := map[string]string{"get": "_student", "list": "_student"}
	maintainerUpdate := func(extra map[string]string) map[string]string {
		out := map[string]string{"get": "_student", "list": "_student", "update": "_maintainer"}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}
	tutorMin := map[string]string{"get": "_tutor", "list": "_tutor", "update": "_maintainer"}

	return &Registry{
		hierarchy: hierarchy,
		handlers: map[string]Handler{
			EntityUser:                   NewSelfOrTutorHandler(EntityUser),
			EntityAccount:                NewSelfOnlyHandler(EntityAccount, false),
			EntityProfile:                NewSelfOnlyHandler(EntityProfile, true),
			EntityOrganization:           NewCourseScopedHandler(EntityOrganization, studentMin),
			EntityCourseFamily:           NewCourseScopedHandler(EntityCourseFamily, studentMin),
			EntityCourse:                 NewCourseScopedHandler(EntityCourse, maintainerUpdate(nil)),
			EntityCourseContent:          NewCourseScopedHandler(EntityCourseContent, studentMin),
			EntityCourseContentType:      NewCourseScopedHandler(EntityCourseContentType, maintainerUpdate(nil)),
			EntityCourseContentKind:      NewReadOnlyHandler(EntityCourseContentKind),
			EntityCourseExecutionBackend: NewCourseScopedHandler(EntityCourseExecutionBackend, tutorMin),
			EntityCourseGroup:            NewCourseGroupHandler(EntityCourseGroup, tutorMin),
			EntityCourseMember:           NewCourseScopedHandler(EntityCourseMember, tutorMin),
			EntityCourseMemberComment:    NewCourseScopedHandler(EntityCourseMemberComment, tutorMin),
			EntityCourseRole:             NewReadOnlyHandler(EntityCourseRole),
			EntityExecutionBackend:       NewReadOnlyHandler(EntityExecutionBackend),
			EntityExample:                NewReadOnlyHandler(EntityExample),
			EntityExampleRepository:      NewReadOnlyHandler(EntityExampleRepository),
			EntityExampleVersion:         NewReadOnlyHandler(EntityExampleVersion),
			EntityResult:                 NewResultHandler(EntityResult),
		},
	}
}

// Register overrides or adds a handler for an entity name.
func (r *Registry) Register(entity string, h Handler) {
	r.handlers[entity] = h
}

// Check is the single authorization entry point (spec §4.2's check_permissions):
// it returns the Decision a store layer should apply, or an apperrors
// Forbidden error if the action is not permitted at all.
func (r *Registry) Check(p identity.Principal, entity, action, resourceID string) (Decision, error) {
	if p.IsAdmin {
		return unrestricted(), nil
	}
	h, ok := r.handlers[entity]
	if !ok {
		return Decision{}, apperrors.Internal("no authorization handler registered for entity "+entity, nil)
	}
	if h.CanPerform(p, action, resourceID) {
		return unrestricted(), nil
	}
	d := h.BuildQuery(p, action, r.hierarchy)
	if !d.Permitted {
		return Decision{}, apperrors.Forbidden("not permitted to "+action+" "+entity, nil)
	}
	return d, nil
}
