package identity

import (
	"fmt"
	"sort"
	"strings"
)

// Claims is the value type carried by a Principal: general (instance-
// independent) permissions and dependent (per-instance) permissions, per
// spec §4.1.
type Claims struct {
	General   map[string][]string            // resource -> actions
	Dependent map[string]map[string][]string // resource -> resource_id -> actions
}

// NewClaims returns an empty Claims value.
func NewClaims() Claims {
	return Claims{
		General:   map[string][]string{},
		Dependent: map[string]map[string][]string{},
	}
}

// ParseClaim parses one (claim_type, claim_value) pair into its resource,
// action, and optional resource id, following the grammar in spec §4.1:
//
//	resource:action               -> general
//	resource:action:resource_id   -> dependent
func ParseClaim(claimValue string) (resource, action, resourceID string, err error) {
	parts := strings.Split(claimValue, ":")
	switch len(parts) {
	case 2:
		return parts[0], parts[1], "", nil
	case 3:
		return parts[0], parts[1], parts[2], nil
	default:
		return "", "", "", fmt.Errorf("identity: malformed claim value %q", claimValue)
	}
}

// BuildClaims accumulates a Claims value from a list of raw claim_value
// strings (claim_type is always "permissions" and is not part of the grammar).
// Malformed entries are skipped rather than failing the whole batch, since a
// single bad row in RoleClaim must not deny every permission check.
func BuildClaims(claimValues []string) Claims {
	c := NewClaims()
	for _, v := range claimValues {
		resource, action, resourceID, err := ParseClaim(v)
		if err != nil {
			continue
		}
		if resourceID == "" {
			c.General[resource] = appendUnique(c.General[resource], action)
			continue
		}
		if c.Dependent[resource] == nil {
			c.Dependent[resource] = map[string][]string{}
		}
		c.Dependent[resource][resourceID] = appendUnique(c.Dependent[resource][resourceID], action)
	}
	return c
}

func appendUnique(actions []string, action string) []string {
	for _, a := range actions {
		if a == action {
			return actions
		}
	}
	return append(actions, action)
}

// Serialize renders Claims back into the sorted list of claim_value strings
// that BuildClaims would parse to produce an equal Claims value (spec §8:
// "claims strings parsed then re-serialized: round-trip equality up to set
// ordering").
func (c Claims) Serialize() []string {
	var out []string
	for resource, actions := range c.General {
		for _, action := range actions {
			out = append(out, fmt.Sprintf("%s:%s", resource, action))
		}
	}
	for resource, byID := range c.Dependent {
		for id, actions := range byID {
			for _, action := range actions {
				out = append(out, fmt.Sprintf("%s:%s:%s", resource, action, id))
			}
		}
	}
	sort.Strings(out)
	return out
}

// HasGeneral reports whether the claims grant action on resource generally.
func (c Claims) HasGeneral(resource, action string) bool {
	for _, a := range c.General[resource] {
		if a == action {
			return true
		}
	}
	return false
}

// HasDependent reports whether the claims grant action on resource scoped to
// resourceID.
func (c Claims) HasDependent(resource, resourceID, action string) bool {
	byID, ok := c.Dependent[resource]
	if !ok {
		return false
	}
	for _, a := range byID[resourceID] {
		if a == action {
			return true
		}
	}
	return false
}

// CourseRoleFor returns the course-role claim values recorded for courseID
// under the "course" dependent resource (the §4.1 special encoding
// "course:<course_role_id>:<course_id>").
func (c Claims) CourseRoleFor(courseID string) []string {
	byID, ok := c.Dependent["course"]
	if !ok {
		return nil
	}
	return byID[courseID]
}

// AddCourseRole records that the principal holds courseRoleID in courseID,
// using the special course claim encoding from spec §4.1.
func (c Claims) AddCourseRole(courseID, courseRoleID string) {
	if c.Dependent["course"] == nil {
		c.Dependent["course"] = map[string][]string{}
	}
	c.Dependent["course"][courseID] = appendUnique(c.Dependent["course"][courseID], courseRoleID)
}

// AddGeneral grants a general action on resource.
func (c Claims) AddGeneral(resource, action string) {
	c.General[resource] = appendUnique(c.General[resource], action)
}
