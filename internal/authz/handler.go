// Package authz implements the authorization core: given a principal, an
// entity name, and an action, it decides whether the action is permitted
// outright and, when it isn't, narrows the set of rows the caller may see
// down to a Filter a store query can apply.
package authz

import (
	"github.com/drewpayment/ctutor-controlplane/internal/identity"
)

// Filter is a narrowing predicate a store layer applies when a principal
// isn't broadly permitted to act on an entity but may still see a subset of
// its rows. Unrestricted==true means "whole table"; a forbidden outcome is
// carried by Decision.Permitted==false, not by the Filter.
type Filter struct {
	// CourseIDIn restricts rows to those belonging to one of these course ids.
	// Empty and non-nil means "no course matches" (forbidden narrowing).
	CourseIDIn []string
	// OwnUserID restricts rows to those owned by this user id.
	OwnUserID string
	// Unrestricted means the caller may see every row of the entity.
	Unrestricted bool
}

// Decision is the outcome of a BuildQuery call.
type Decision struct {
	Permitted bool
	Filter    Filter
}

func forbidden() Decision { return Decision{Permitted: false} }

func unrestricted() Decision {
	return Decision{Permitted: true, Filter: Filter{Unrestricted: true}}
}

func scopedToCourses(courseIDs []string) Decision {
	return Decision{Permitted: true, Filter: Filter{CourseIDIn: courseIDs}}
}

// Handler decides access for one entity kind.
type Handler interface {
	// CanPerform reports whether p is broadly permitted to perform action on
	// the entity without any row-level narrowing. resourceID, when non-empty,
	// is the dependent-claim resource id for update/delete-style actions.
	CanPerform(p identity.Principal, action, resourceID string) bool

	// BuildQuery returns the narrowing decision for a list/get style action
	// once CanPerform has already returned false for the broad grant.
	BuildQuery(p identity.Principal, action string, h identity.RoleHierarchy) Decision
}
