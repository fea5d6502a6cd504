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
)

func stubSelectDeployments(ctx context.Context, in activities.SelectDeploymentsInput) (activities.SelectDeploymentsOutput, error) {
	return activities.SelectDeploymentsOutput{}, nil
}

func stubMarkDeploying(ctx context.Context, in activities.MarkDeployingInput) (activities.MarkDeployingOutput, error) {
	return activities.MarkDeployingOutput{}, nil
}

func stubCloneStudentTemplate(ctx context.Context, in activities.CloneStudentTemplateInput) (activities.CloneStudentTemplateOutput, error) {
	return activities.CloneStudentTemplateOutput{}, nil
}

func stubCloneAssignments(ctx context.Context, in activities.CloneAssignmentsInput) (activities.CloneAssignmentsOutput, error) {
	return activities.CloneAssignmentsOutput{HeadCommit: "deadbeef"}, nil
}

func stubProcessContent(ctx context.Context, in activities.ProcessContentInput) (activities.ProcessContentOutput, error) {
	return activities.ProcessContentOutput{}, nil
}

func stubWriteContentFiles(ctx context.Context, in activities.WriteFilesInput) error {
	return nil
}

func stubWriteRootReadme(ctx context.Context, in activities.WriteRootReadmeInput) error {
	return nil
}

func stubCommitAndPush(ctx context.Context, in activities.CommitAndPushInput) (activities.CommitAndPushOutput, error) {
	return activities.CommitAndPushOutput{}, nil
}

func stubFinalizeDeployments(ctx context.Context, in activities.FinalizeDeploymentsInput) error {
	return nil
}

func stubCleanupWorkDir(ctx context.Context, dir string) error {
	return nil
}

func registerStudentTemplateStubs(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivityWithOptions(stubSelectDeployments, activity.RegisterOptions{Name: ActivitySelectDeployments})
	env.RegisterActivityWithOptions(stubMarkDeploying, activity.RegisterOptions{Name: ActivityMarkDeploying})
	env.RegisterActivityWithOptions(stubCloneStudentTemplate, activity.RegisterOptions{Name: ActivityCloneStudentTemplate})
	env.RegisterActivityWithOptions(stubCloneAssignments, activity.RegisterOptions{Name: ActivityCloneAssignments})
	env.RegisterActivityWithOptions(stubProcessContent, activity.RegisterOptions{Name: ActivityProcessContent})
	env.RegisterActivityWithOptions(stubWriteContentFiles, activity.RegisterOptions{Name: ActivityWriteContentFiles})
	env.RegisterActivityWithOptions(stubWriteRootReadme, activity.RegisterOptions{Name: ActivityWriteRootReadme})
	env.RegisterActivityWithOptions(stubCommitAndPush, activity.RegisterOptions{Name: ActivityCommitAndPushTemplate})
	env.RegisterActivityWithOptions(stubFinalizeDeployments, activity.RegisterOptions{Name: ActivityFinalizeDeployments})
	env.RegisterActivityWithOptions(stubCleanupWorkDir, activity.RegisterOptions{Name: "CleanupWorkDir"})
}

func TestStudentTemplateWorkflow_NoSelectionIsANoOp(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	registerStudentTemplateStubs(env)

	env.OnActivity(stubSelectDeployments, mock.Anything, mock.Anything).
		Return(activities.SelectDeploymentsOutput{}, nil)

	env.ExecuteWorkflow(StudentTemplateWorkflow, StudentTemplateWorkflowInput{CourseID: "course-1", All: true})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result StudentTemplateWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, 0, result.SucceededCount)
}

func TestStudentTemplateWorkflow_PublishesAndFinalizes(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	registerStudentTemplateStubs(env)

	sel := activities.SelectedDeployment{ContentID: "content-1", DeploymentID: "dep-1", DeploymentPath: "week1.ex1"}

	env.OnActivity(stubSelectDeployments, mock.Anything, mock.Anything).
		Return(activities.SelectDeploymentsOutput{Selections: []activities.SelectedDeployment{sel}}, nil)
	env.OnActivity(stubMarkDeploying, mock.Anything, mock.Anything).
		Return(activities.MarkDeployingOutput{Marked: []activities.SelectedDeployment{sel}}, nil)
	env.OnActivity(stubCloneStudentTemplate, mock.Anything, mock.Anything).
		Return(activities.CloneStudentTemplateOutput{}, nil)
	env.OnActivity(stubCloneAssignments, mock.Anything, mock.Anything).
		Return(activities.CloneAssignmentsOutput{HeadCommit: "deadbeef"}, nil)
	env.OnActivity(stubProcessContent, mock.Anything, mock.Anything).
		Return(activities.ProcessContentOutput{
			Success:        true,
			DeploymentPath: "week1.ex1",
			ResolvedCommit: "deadbeef",
			Files:          map[string][]byte{"main.go": []byte("package main")},
		}, nil)
	env.OnActivity(stubWriteContentFiles, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(stubWriteRootReadme, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(stubCommitAndPush, mock.Anything, mock.Anything).
		Return(activities.CommitAndPushOutput{SHA: "cafef00d", Changed: true}, nil)
	env.OnActivity(stubFinalizeDeployments, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(stubCleanupWorkDir, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(StudentTemplateWorkflow, StudentTemplateWorkflowInput{
		CourseID:           "course-1",
		StudentTemplateURL: "https://git.example.com/acme/cs101/student-template.git",
		AssignmentsURL:     "https://git.example.com/acme/cs101/assignments.git",
		All:                true,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result StudentTemplateWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, 1, result.SucceededCount)
	require.Equal(t, 0, result.FailedCount)
	require.Equal(t, "cafef00d", result.CommitSHA)
}

func TestStudentTemplateWorkflow_FailsAllOnAssignmentsCloneFailure(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	registerStudentTemplateStubs(env)

	sel := activities.SelectedDeployment{ContentID: "content-1", DeploymentID: "dep-1"}

	env.OnActivity(stubSelectDeployments, mock.Anything, mock.Anything).
		Return(activities.SelectDeploymentsOutput{Selections: []activities.SelectedDeployment{sel}}, nil)
	env.OnActivity(stubMarkDeploying, mock.Anything, mock.Anything).
		Return(activities.MarkDeployingOutput{Marked: []activities.SelectedDeployment{sel}}, nil)
	env.OnActivity(stubCloneStudentTemplate, mock.Anything, mock.Anything).
		Return(activities.CloneStudentTemplateOutput{}, nil)
	env.OnActivity(stubCloneAssignments, mock.Anything, mock.Anything).
		Return(activities.CloneAssignmentsOutput{}, fmt.Errorf("remote unreachable"))
	env.OnActivity(stubFinalizeDeployments, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(stubCleanupWorkDir, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(StudentTemplateWorkflow, StudentTemplateWorkflowInput{
		CourseID:           "course-1",
		StudentTemplateURL: "https://git.example.com/acme/cs101/student-template.git",
		AssignmentsURL:     "https://git.example.com/acme/cs101/assignments.git",
		All:                true,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}
