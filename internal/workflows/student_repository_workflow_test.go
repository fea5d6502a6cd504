package workflows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/drewpayment/ctutor-controlplane/internal/activities"
	"github.com/drewpayment/ctutor-controlplane/internal/clients"
)

func stubFindExistingFork(ctx context.Context, in activities.ForkTargetInput) (activities.ForkTargetOutput, error) {
	return activities.ForkTargetOutput{}, nil
}

func stubRequestFork(ctx context.Context, in activities.ForkTargetInput) (activities.ForkTargetOutput, error) {
	return activities.ForkTargetOutput{}, nil
}

func stubPollForkReady(ctx context.Context, in activities.PollForkReadyInput) (activities.PollForkReadyOutput, error) {
	return activities.PollForkReadyOutput{}, nil
}

func stubUnprotectBranches(ctx context.Context, in activities.UnprotectBranchesInput) error {
	return nil
}

func stubGrantAccess(ctx context.Context, in activities.GrantAccessInput) (activities.GrantAccessOutput, error) {
	return activities.GrantAccessOutput{}, nil
}

func stubPersistRepository(ctx context.Context, in activities.PersistRepositoryInput) error {
	return nil
}

func registerStudentRepositoryStubs(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivityWithOptions(stubFindExistingFork, activity.RegisterOptions{Name: ActivityFindExistingFork})
	env.RegisterActivityWithOptions(stubRequestFork, activity.RegisterOptions{Name: ActivityRequestFork})
	env.RegisterActivityWithOptions(stubPollForkReady, activity.RegisterOptions{Name: ActivityPollForkReady})
	env.RegisterActivityWithOptions(stubUnprotectBranches, activity.RegisterOptions{Name: ActivityUnprotectBranches})
	env.RegisterActivityWithOptions(stubGrantAccess, activity.RegisterOptions{Name: ActivityGrantAccess})
	env.RegisterActivityWithOptions(stubPersistRepository, activity.RegisterOptions{Name: ActivityPersistRepository})
}

func TestStudentRepositoryWorkflow_ReusesExistingFork(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	registerStudentRepositoryStubs(env)

	existing := clients.GitHostProject{ID: 42, PathWithNamespace: "students/alice", WebURL: "https://git.example.com/students/alice"}

	env.OnActivity(stubFindExistingFork, mock.Anything, mock.Anything).
		Return(activities.ForkTargetOutput{AlreadyForked: true, Project: existing}, nil)
	env.OnActivity(stubRequestFork, mock.Anything, mock.Anything).
		Return(activities.ForkTargetOutput{}, nil) // must not be called
	env.OnActivity(stubUnprotectBranches, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(stubGrantAccess, mock.Anything, mock.Anything).
		Return(activities.GrantAccessOutput{RemoteUserID: 7}, nil)
	env.OnActivity(stubPersistRepository, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(StudentRepositoryWorkflow, StudentRepositoryWorkflowInput{
		CourseMemberID:           "member-1",
		StudentTemplateProjectID: 1,
		StudentsGroupID:          2,
		TargetSlug:               "alice",
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result StudentRepositoryWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, "students/alice", result.ProjectPath)
	require.Equal(t, int64(7), result.RemoteUserID)
}

func TestStudentRepositoryWorkflow_ForksAndPollsUntilReady(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	registerStudentRepositoryStubs(env)

	forking := clients.GitHostProject{ID: 43}
	ready := clients.GitHostProject{ID: 43, PathWithNamespace: "students/bob", WebURL: "https://git.example.com/students/bob"}

	pollCount := 0
	env.OnActivity(stubFindExistingFork, mock.Anything, mock.Anything).
		Return(activities.ForkTargetOutput{AlreadyForked: false}, nil)
	env.OnActivity(stubRequestFork, mock.Anything, mock.Anything).
		Return(activities.ForkTargetOutput{Project: forking}, nil)
	env.OnActivity(stubPollForkReady, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, in activities.PollForkReadyInput) (activities.PollForkReadyOutput, error) {
			pollCount++
			if pollCount < 2 {
				return activities.PollForkReadyOutput{Ready: false}, nil
			}
			return activities.PollForkReadyOutput{Ready: true, Project: ready}, nil
		})
	env.OnActivity(stubUnprotectBranches, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(stubGrantAccess, mock.Anything, mock.Anything).
		Return(activities.GrantAccessOutput{RemoteUserID: 9}, nil)
	env.OnActivity(stubPersistRepository, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(StudentRepositoryWorkflow, StudentRepositoryWorkflowInput{
		CourseMemberID:           "member-2",
		StudentTemplateProjectID: 1,
		StudentsGroupID:          2,
		TargetSlug:               "bob",
		ForkPollInitialWait:      time.Millisecond,
		ForkPollInterval:         time.Millisecond,
		ForkPollMaxTries:         5,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result StudentRepositoryWorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, "students/bob", result.ProjectPath)
}
