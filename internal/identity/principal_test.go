package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPrincipal_AdminBypass(t *testing.T) {
	p := NewPrincipal("u1", []string{"_owner", "user_admin"}, NewClaims())
	assert.True(t, p.IsAdmin)

	p2 := NewPrincipal("u2", []string{"_owner"}, NewClaims())
	assert.False(t, p2.IsAdmin)
}

func TestPrincipal_Permitted(t *testing.T) {
	hierarchy := NewRoleHierarchy(nil)
	claims := BuildClaims([]string{
		"course:_tutor:course-1",
	})
	p := NewPrincipal("u1", []string{}, claims)

	assert.True(t, p.Permitted("course_content", "get", "course-1", "_student", hierarchy))
	assert.False(t, p.Permitted("course_content", "update", "course-1", "_maintainer", hierarchy))
}

func TestPrincipal_CoursesWithRole(t *testing.T) {
	hierarchy := NewRoleHierarchy(nil)
	claims := BuildClaims([]string{
		"course:_student:course-1",
		"course:_tutor:course-2",
	})
	p := NewPrincipal("u1", nil, claims)

	listCourses := p.CoursesWithRole("_student", hierarchy)
	assert.ElementsMatch(t, []string{"course-1", "course-2"}, listCourses)

	updateCourses := p.CoursesWithRole("_maintainer", hierarchy)
	assert.Empty(t, updateCourses)
}

func TestPrincipal_AdminPermittedEverywhere(t *testing.T) {
	p := NewPrincipal("u1", []string{"_admin"}, NewClaims())
	hierarchy := NewRoleHierarchy(nil)
	assert.True(t, p.Permitted("anything", "update", "", "", hierarchy))
	assert.True(t, p.HasCourseRole("course-1", "_maintainer", hierarchy))
}

func TestPrincipal_WithImplicitAuthoringClaims(t *testing.T) {
	hierarchy := NewRoleHierarchy(nil)
	claims := BuildClaims([]string{"course:_maintainer:course-1"})
	p := NewPrincipal("u1", nil, claims).WithImplicitAuthoringClaims(hierarchy)

	assert.True(t, p.Claims.HasGeneral("course_content", "create"))
	assert.True(t, p.Claims.HasGeneral("example", "download"))
}

func TestPrincipal_WithImplicitAuthoringClaims_NotGrantedForStudent(t *testing.T) {
	hierarchy := NewRoleHierarchy(nil)
	claims := BuildClaims([]string{"course:_student:course-1"})
	p := NewPrincipal("u1", nil, claims).WithImplicitAuthoringClaims(hierarchy)

	assert.False(t, p.Claims.HasGeneral("course_content", "create"))
}
