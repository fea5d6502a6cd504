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

func stubCloneRepo(ctx context.Context, in activities.CloneRepoInput) error {
	return nil
}

func stubRunTests(ctx context.Context, in activities.RunTestsInput) (activities.RunTestsOutput, error) {
	return activities.RunTestsOutput{}, nil
}

func stubCommitResult(ctx context.Context, in activities.CommitResultInput) error {
	return nil
}

func stubCleanupWorkspace(ctx context.Context, dir string) error {
	return nil
}

func registerTestExecutionStubs(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivityWithOptions(stubCloneRepo, activity.RegisterOptions{Name: ActivityCloneRepo})
	env.RegisterActivityWithOptions(stubRunTests, activity.RegisterOptions{Name: ActivityRunTests})
	env.RegisterActivityWithOptions(stubCommitResult, activity.RegisterOptions{Name: ActivityCommitResult})
	env.RegisterActivityWithOptions(stubCleanupWorkspace, activity.RegisterOptions{Name: ActivityCleanupWorkspace})
}

func baseTestJobInput() TestExecutionWorkflowInput {
	return TestExecutionWorkflowInput{
		ResultID: "result-1",
		WorkDir:  "/tmp/ctutor-test-1",
		Job: TestJob{
			Backend:        "python",
			DeploymentPath: "week1.ex1",
			StudentRepo:    activities.RepoRef{URL: "https://git.example.com/acme/cs101/students/alice.git", Commit: "aaa"},
			ReferenceRepo:  activities.RepoRef{URL: "https://git.example.com/acme/cs101/assignments.git", Commit: "bbb"},
		},
	}
}

func TestTestExecutionWorkflow_HappyPathCommitsFinished(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	registerTestExecutionStubs(env)

	env.OnActivity(stubCloneRepo, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(stubRunTests, mock.Anything, mock.Anything).
		Return(activities.RunTestsOutput{Passed: 8, Failed: 2, Total: 10}, nil)
	env.OnActivity(stubCommitResult, mock.Anything, mock.MatchedBy(func(in activities.CommitResultInput) bool {
		return in.Status == "finished" && in.Score == 0.8
	})).Return(nil)
	env.OnActivity(stubCleanupWorkspace, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(TestExecutionWorkflow, baseTestJobInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result TestExecutionWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, "finished", result.Status)
	require.Equal(t, 8, result.Passed)
	require.Equal(t, 10, result.Total)
}

func TestTestExecutionWorkflow_StudentCloneFailureCommitsFailed(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	registerTestExecutionStubs(env)

	env.OnActivity(stubCloneRepo, mock.Anything, mock.MatchedBy(func(in activities.CloneRepoInput) bool {
		return in.Repo.Commit == "aaa"
	})).Return(fmt.Errorf("clone failed: repository not found"))
	env.OnActivity(stubCommitResult, mock.Anything, mock.MatchedBy(func(in activities.CommitResultInput) bool {
		return in.Status == "failed"
	})).Return(nil)
	env.OnActivity(stubCleanupWorkspace, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(TestExecutionWorkflow, baseTestJobInput())

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}

func TestTestExecutionWorkflow_BackendErrorCommitsFailed(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	registerTestExecutionStubs(env)

	env.OnActivity(stubCloneRepo, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(stubRunTests, mock.Anything, mock.Anything).
		Return(activities.RunTestsOutput{}, fmt.Errorf("backend unreachable"))
	env.OnActivity(stubCommitResult, mock.Anything, mock.MatchedBy(func(in activities.CommitResultInput) bool {
		return in.Status == "failed"
	})).Return(nil)
	env.OnActivity(stubCleanupWorkspace, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(TestExecutionWorkflow, baseTestJobInput())

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}
