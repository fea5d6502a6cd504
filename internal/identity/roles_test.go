package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleHierarchy_ReflexiveAndTransitive(t *testing.T) {
	h := NewRoleHierarchy(nil)

	for role := range DefaultCourseRoleHierarchy {
		assert.True(t, h.Satisfies(role, role), "role %s must satisfy itself", role)
	}

	// _owner is the most permissive holder: it satisfies every requirement.
	for role := range DefaultCourseRoleHierarchy {
		assert.True(t, h.Satisfies("_owner", role), "_owner must satisfy requirement for %s", role)
	}

	assert.True(t, h.Satisfies("_tutor", "_student"))
	assert.False(t, h.Satisfies("_student", "_tutor"))
}

func TestRoleHierarchy_UnknownRole(t *testing.T) {
	h := NewRoleHierarchy(nil)
	assert.Empty(t, h.AllowedCourseRoleIDs("_nonexistent"))
	assert.False(t, h.Satisfies("_owner", "_nonexistent"))
}

func TestRoleHierarchy_CustomMapping(t *testing.T) {
	h := NewRoleHierarchy(map[string][]string{
		"_lead": {"_lead"},
		"_rep":  {"_rep", "_lead"},
	})
	assert.True(t, h.Satisfies("_lead", "_rep"))
	assert.False(t, h.Satisfies("_rep", "_lead"))
}
