package authz

import (
	"testing"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/drewpayment/ctutor-controlplane/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AdminBypassesEverything(t *testing.T) {
	r := NewRegistry(identity.NewRoleHierarchy(nil))
	admin := identity.NewPrincipal("u1", []string{"_admin"}, identity.NewClaims())

	d, err := r.Check(admin, EntityCourse, "update", "")
	require.NoError(t, err)
	assert.True(t, d.Filter.Unrestricted)
}

func TestRegistry_UnknownEntity(t *testing.T) {
	r := NewRegistry(identity.NewRoleHierarchy(nil))
	p := identity.NewPrincipal("u1", nil, identity.NewClaims())

	_, err := r.Check(p, "not_a_real_entity", "list", "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInternal))
}

func TestRegistry_CourseScoped_StudentCanListOwnCourses(t *testing.T) {
	h := identity.NewRoleHierarchy(nil)
	r := NewRegistry(h)
	claims := identity.BuildClaims([]string{"course:_student:course-1"})
	p := identity.NewPrincipal("u1", nil, claims)

	d, err := r.Check(p, EntityCourse, "list", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"course-1"}, d.Filter.CourseIDIn)

	_, err = r.Check(p, EntityCourse, "update", "")
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestRegistry_CourseScoped_MaintainerCanUpdate(t *testing.T) {
	h := identity.NewRoleHierarchy(nil)
	r := NewRegistry(h)
	claims := identity.BuildClaims([]string{"course:_maintainer:course-1"})
	p := identity.NewPrincipal("u1", nil, claims)

	d, err := r.Check(p, EntityCourse, "update", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"course-1"}, d.Filter.CourseIDIn)
}

func TestRegistry_ReadOnlyEntity(t *testing.T) {
	r := NewRegistry(identity.NewRoleHierarchy(nil))
	p := identity.NewPrincipal("u1", nil, identity.NewClaims())

	d, err := r.Check(p, EntityExample, "list", "")
	require.NoError(t, err)
	assert.True(t, d.Filter.Unrestricted)

	_, err = r.Check(p, EntityExample, "update", "")
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestRegistry_SelfOnly_Account(t *testing.T) {
	r := NewRegistry(identity.NewRoleHierarchy(nil))
	p := identity.NewPrincipal("u1", nil, identity.NewClaims())

	d, err := r.Check(p, EntityAccount, "get", "")
	require.NoError(t, err)
	assert.Equal(t, "u1", d.Filter.OwnUserID)

	_, err = r.Check(p, EntityAccount, "update", "")
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestRegistry_SelfOrTutor_User(t *testing.T) {
	h := identity.NewRoleHierarchy(nil)
	r := NewRegistry(h)
	claims := identity.BuildClaims([]string{"course:_tutor:course-9"})
	p := identity.NewPrincipal("tutor1", nil, claims)

	d, err := r.Check(p, EntityUser, "list", "")
	require.NoError(t, err)
	assert.Equal(t, "tutor1", d.Filter.OwnUserID)
	assert.ElementsMatch(t, []string{"course-9"}, d.Filter.CourseIDIn)
}

func TestRegistry_CourseGroup_StudentSeesOwnGroup(t *testing.T) {
	h := identity.NewRoleHierarchy(nil)
	r := NewRegistry(h)
	claims := identity.BuildClaims([]string{"course:_student:course-1"})
	p := identity.NewPrincipal("stu1", nil, claims)

	d, err := r.Check(p, EntityCourseGroup, "get", "")
	require.NoError(t, err)
	assert.Equal(t, "stu1", d.Filter.OwnUserID)
	assert.ElementsMatch(t, []string{"course-1"}, d.Filter.CourseIDIn)
}

func TestRegistry_Result_StudentSeesOwnOnly(t *testing.T) {
	h := identity.NewRoleHierarchy(nil)
	r := NewRegistry(h)
	claims := identity.BuildClaims([]string{"course:_student:course-1"})
	p := identity.NewPrincipal("stu1", nil, claims)

	d, err := r.Check(p, EntityResult, "list", "")
	require.NoError(t, err)
	assert.Empty(t, d.Filter.CourseIDIn)
	assert.Equal(t, "stu1", d.Filter.OwnUserID)
}

func TestRegistry_Result_TutorSeesCourseWide(t *testing.T) {
	h := identity.NewRoleHierarchy(nil)
	r := NewRegistry(h)
	claims := identity.BuildClaims([]string{"course:_tutor:course-1"})
	p := identity.NewPrincipal("tutor1", nil, claims)

	d, err := r.Check(p, EntityResult, "list", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"course-1"}, d.Filter.CourseIDIn)
}

func TestRegistry_BroadGeneralClaimGrantsUnrestricted(t *testing.T) {
	r := NewRegistry(identity.NewRoleHierarchy(nil))
	claims := identity.BuildClaims([]string{"course:list", "course:update"})
	p := identity.NewPrincipal("u1", nil, claims)

	d, err := r.Check(p, EntityCourse, "update", "")
	require.NoError(t, err)
	assert.True(t, d.Filter.Unrestricted)
}
