package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClaim(t *testing.T) {
	resource, action, id, err := ParseClaim("course_content:get")
	require.NoError(t, err)
	assert.Equal(t, "course_content", resource)
	assert.Equal(t, "get", action)
	assert.Empty(t, id)

	resource, action, id, err = ParseClaim("course:_maintainer:course-1")
	require.NoError(t, err)
	assert.Equal(t, "course", resource)
	assert.Equal(t, "_maintainer", action)
	assert.Equal(t, "course-1", id)

	_, _, _, err = ParseClaim("bogus")
	assert.Error(t, err)
}

func TestBuildClaims_GeneralAndDependent(t *testing.T) {
	c := BuildClaims([]string{
		"course_content:get",
		"course_content:list",
		"example:get:repo-1",
		"course:_student:course-1",
	})

	assert.True(t, c.HasGeneral("course_content", "get"))
	assert.True(t, c.HasGeneral("course_content", "list"))
	assert.False(t, c.HasGeneral("course_content", "update"))
	assert.True(t, c.HasDependent("example", "repo-1", "get"))
	assert.ElementsMatch(t, []string{"_student"}, c.CourseRoleFor("course-1"))
}

func TestClaims_RoundTrip(t *testing.T) {
	original := []string{
		"course_content:get",
		"course_content:list",
		"example:get:repo-1",
		"course:_student:course-1",
		"course:_tutor:course-2",
	}
	c := BuildClaims(original)
	reserialized := c.Serialize()

	c2 := BuildClaims(reserialized)
	assert.ElementsMatch(t, c.Serialize(), c2.Serialize())
}

func TestBuildClaims_SkipsMalformed(t *testing.T) {
	c := BuildClaims([]string{"course_content:get", "totally:bad:claim:shape:here"})
	assert.True(t, c.HasGeneral("course_content", "get"))
}
