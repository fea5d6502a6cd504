package workflows

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/drewpayment/ctutor-controlplane/internal/activities"
	"github.com/drewpayment/ctutor-controlplane/pkg/types"
)

func stubEnsureOrganizationGroup(ctx context.Context, in activities.EnsureOrganizationInput) (activities.EnsureOrganizationOutput, error) {
	return activities.EnsureOrganizationOutput{}, nil
}

func stubEnsureCourseFamilyGroup(ctx context.Context, in activities.EnsureCourseFamilyInput) (activities.EnsureCourseFamilyOutput, error) {
	return activities.EnsureCourseFamilyOutput{}, nil
}

func stubEnsureCourseAndProjects(ctx context.Context, in activities.EnsureCourseInput) (activities.EnsureCourseOutput, error) {
	return activities.EnsureCourseOutput{}, nil
}

func stubEnsureContentTypes(ctx context.Context, in activities.EnsureContentTypesInput) error {
	return nil
}

func stubEnsureCourseRoles(ctx context.Context, in activities.EnsureCourseRolesInput) error {
	return nil
}

func stubEnsureMembership(ctx context.Context, in activities.EnsureMembershipInput) (activities.EnsureMembershipOutput, error) {
	return activities.EnsureMembershipOutput{}, nil
}

func registerHierarchyStubs(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivityWithOptions(stubEnsureOrganizationGroup, activity.RegisterOptions{Name: ActivityEnsureOrganizationGroup})
	env.RegisterActivityWithOptions(stubEnsureCourseFamilyGroup, activity.RegisterOptions{Name: ActivityEnsureCourseFamilyGroup})
	env.RegisterActivityWithOptions(stubEnsureCourseAndProjects, activity.RegisterOptions{Name: ActivityEnsureCourseAndProjects})
	env.RegisterActivityWithOptions(stubEnsureContentTypes, activity.RegisterOptions{Name: ActivityEnsureContentTypes})
	env.RegisterActivityWithOptions(stubEnsureCourseRoles, activity.RegisterOptions{Name: ActivityEnsureCourseRoles})
	env.RegisterActivityWithOptions(stubEnsureMembership, activity.RegisterOptions{Name: ActivityEnsureMembership})
}

func TestHierarchyWorkflow_ReconcilesEveryUser(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	registerHierarchyStubs(env)

	input := HierarchyWorkflowInput{
		OrganizationPath: "acme",
		OrganizationType: "organization",
		CourseFamilyPath: "acme.cs",
		CoursePath:       "acme.cs.101",
		Users: []activities.UserSpec{
			{Provider: "keycloak", ProviderAccountID: "u-1", CourseRoleID: "_student", CourseGroupTitle: "group-a"},
			{Provider: "keycloak", ProviderAccountID: "u-2", CourseRoleID: "_lecturer"},
		},
		CreatedBy: "system",
	}

	env.OnActivity(stubEnsureOrganizationGroup, mock.Anything, mock.Anything).
		Return(activities.EnsureOrganizationOutput{OrganizationID: "org-1", GroupID: 10}, nil)
	env.OnActivity(stubEnsureCourseFamilyGroup, mock.Anything, mock.Anything).
		Return(activities.EnsureCourseFamilyOutput{CourseFamilyID: "fam-1", GroupID: 11}, nil)
	env.OnActivity(stubEnsureCourseAndProjects, mock.Anything, mock.Anything).
		Return(activities.EnsureCourseOutput{CourseID: "course-1", Projects: types.GitlabCourseProjects{StudentTemplateID: 99}}, nil)
	env.OnActivity(stubEnsureCourseRoles, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(stubEnsureMembership, mock.Anything, mock.Anything).
		Return(activities.EnsureMembershipOutput{UserID: "user-1", CourseMemberID: "member-1"}, nil).Once()
	env.OnActivity(stubEnsureMembership, mock.Anything, mock.Anything).
		Return(activities.EnsureMembershipOutput{UserID: "user-2", CourseMemberID: "member-2"}, nil).Once()

	env.ExecuteWorkflow(HierarchyWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result HierarchyWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, "course-1", result.CourseID)
	require.ElementsMatch(t, []string{"member-1", "member-2"}, result.MemberIDs)
}

func TestHierarchyWorkflow_FailsFastOnCourseCreationError(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	registerHierarchyStubs(env)

	input := HierarchyWorkflowInput{
		OrganizationPath: "acme",
		OrganizationType: "organization",
		CourseFamilyPath: "acme.cs",
		CoursePath:       "acme.cs.101",
		CreatedBy:        "system",
	}

	env.OnActivity(stubEnsureOrganizationGroup, mock.Anything, mock.Anything).
		Return(activities.EnsureOrganizationOutput{OrganizationID: "org-1", GroupID: 10}, nil)
	env.OnActivity(stubEnsureCourseFamilyGroup, mock.Anything, mock.Anything).
		Return(activities.EnsureCourseFamilyOutput{CourseFamilyID: "fam-1", GroupID: 11}, nil)
	env.OnActivity(stubEnsureCourseAndProjects, mock.Anything, mock.Anything).
		Return(activities.EnsureCourseOutput{}, fmt.Errorf("remote project creation failed"))

	env.ExecuteWorkflow(HierarchyWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}
