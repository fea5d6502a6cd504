package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/drewpayment/ctutor-controlplane/internal/activities"
)

// Activity names registered by cmd/worker/main.go for the Test Execution
// Workflow (spec §4.10); must match TestExecutionActivities method names.
const (
	ActivityCloneRepo        = "CloneRepo"
	ActivityRunTests         = "RunTests"
	ActivityCommitResult     = "CommitResult"
	ActivityCleanupWorkspace = "CleanupWorkspace"
)

// TestJob describes one test run: the student submission and the reference
// implementation, each pinned to a commit (spec §4.10 "TestJob").
type TestJob struct {
	StudentRepo       activities.RepoRef
	ReferenceRepo     activities.RepoRef
	Backend           string // "python", "matlab", ...
	DeploymentPath    string
	JobConfig         map[string]any
	BackendProperties map[string]any
}

// TestExecutionWorkflowInput is the full input to the workflow: the job plus
// the Result row the API already created for this run.
type TestExecutionWorkflowInput struct {
	Job      TestJob
	ResultID string
	WorkDir  string // base scratch directory; student/reference subdirs are derived
}

type TestExecutionWorkflowResult struct {
	Passed int
	Failed int
	Total  int
	Status string
}

// TestExecutionWorkflow clones the student and reference repositories,
// dispatches to the backend executor, and commits the outcome onto the
// Result row (spec §4.10). Per-run failures (clone, backend error) are
// committed as a "failed" Result rather than left pending, and the scratch
// workspace is always removed on the way out.
func TestExecutionWorkflow(ctx workflow.Context, input TestExecutionWorkflowInput) (TestExecutionWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting test execution workflow", "result_id", input.ResultID, "backend", input.Job.Backend)

	studentDir := input.WorkDir + "/student"
	referenceDir := input.WorkDir + "/reference"

	cleanupCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})
	defer func() {
		disconnected, cancel := workflow.NewDisconnectedContext(cleanupCtx)
		defer cancel()
		_ = workflow.ExecuteActivity(disconnected, ActivityCleanupWorkspace, input.WorkDir).Get(disconnected, nil)
	}()

	cloneCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 20 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    100 * time.Second,
			MaximumAttempts:    3,
		},
	})

	if err := workflow.ExecuteActivity(cloneCtx, ActivityCloneRepo, activities.CloneRepoInput{
		Repo: input.Job.StudentRepo, WorkDir: studentDir,
	}).Get(cloneCtx, nil); err != nil {
		return input.failAndCommit(cleanupCtx, "cloning student repository failed")
	}

	if err := workflow.ExecuteActivity(cloneCtx, ActivityCloneRepo, activities.CloneRepoInput{
		Repo: input.Job.ReferenceRepo, WorkDir: referenceDir,
	}).Get(cloneCtx, nil); err != nil {
		return input.failAndCommit(cleanupCtx, "cloning reference repository failed")
	}

	runCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 20 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    100 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var run activities.RunTestsOutput
	if err := workflow.ExecuteActivity(runCtx, ActivityRunTests, activities.RunTestsInput{
		Backend:           input.Job.Backend,
		StudentDir:        studentDir,
		ReferenceDir:      referenceDir,
		DeploymentPath:    input.Job.DeploymentPath,
		JobConfig:         input.Job.JobConfig,
		BackendProperties: input.Job.BackendProperties,
	}).Get(runCtx, &run); err != nil {
		return input.failAndCommit(cleanupCtx, "test backend invocation failed")
	}

	score := 0.0
	if run.Total > 0 {
		score = float64(run.Passed) / float64(run.Total)
	}

	if err := workflow.ExecuteActivity(cleanupCtx, ActivityCommitResult, activities.CommitResultInput{
		ResultID: input.ResultID,
		Status:   "finished",
		Score:    score,
		Details:  run.Details,
	}).Get(cleanupCtx, nil); err != nil {
		return TestExecutionWorkflowResult{}, err
	}

	logger.Info("test execution workflow completed", "result_id", input.ResultID, "passed", run.Passed, "total", run.Total)
	return TestExecutionWorkflowResult{Passed: run.Passed, Failed: run.Failed, Total: run.Total, Status: "finished"}, nil
}

func (input TestExecutionWorkflowInput) failAndCommit(ctx workflow.Context, reason string) (TestExecutionWorkflowResult, error) {
	_ = workflow.ExecuteActivity(ctx, ActivityCommitResult, activities.CommitResultInput{
		ResultID: input.ResultID,
		Status:   "failed",
		Score:    0,
		Details:  map[string]any{"error": reason},
	}).Get(ctx, nil)
	return TestExecutionWorkflowResult{Status: "failed"}, workflow.NewApplicationError(reason, "TestExecutionFailed")
}
