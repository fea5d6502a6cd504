package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/drewpayment/ctutor-controlplane/internal/activities"
)

// Activity names registered by cmd/worker/main.go; these must match the
// StudentRepositoryActivities method names exactly.
const (
	ActivityFindExistingFork   = "FindExistingFork"
	ActivityRequestFork        = "RequestFork"
	ActivityPollForkReady      = "PollForkReady"
	ActivityUnprotectBranches  = "UnprotectBranches"
	ActivityGrantAccess        = "GrantAccess"
	ActivityPersistRepository  = "PersistRepository"
)

// StudentRepositoryWorkflowInput describes one fork request for a newly
// created student (or team) CourseMember (spec §4.9).
type StudentRepositoryWorkflowInput struct {
	CourseMemberID           string
	StudentTemplateProjectID int64
	StudentsGroupID          int64
	TargetSlug               string

	ForkPollInitialWait time.Duration
	ForkPollInterval    time.Duration
	ForkPollMaxTries    int
}

type StudentRepositoryWorkflowResult struct {
	ProjectPath  string
	WebURL       string
	RemoteUserID int64
}

// StudentRepositoryWorkflow forks the student-template project for one
// student/team and wires up access and persistence (spec §4.9).
func StudentRepositoryWorkflow(ctx workflow.Context, input StudentRepositoryWorkflowInput) (StudentRepositoryWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting student repository workflow", "target_slug", input.TargetSlug)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	target := activities.ForkTargetInput{
		CourseMemberID:           input.CourseMemberID,
		StudentTemplateProjectID: input.StudentTemplateProjectID,
		StudentsGroupID:          input.StudentsGroupID,
		TargetSlug:               input.TargetSlug,
	}

	var existing activities.ForkTargetOutput
	if err := workflow.ExecuteActivity(ctx, ActivityFindExistingFork, target).Get(ctx, &existing); err != nil {
		return StudentRepositoryWorkflowResult{}, err
	}

	project := existing.Project
	if !existing.AlreadyForked {
		var created activities.ForkTargetOutput
		if err := workflow.ExecuteActivity(ctx, ActivityRequestFork, target).Get(ctx, &created); err != nil {
			return StudentRepositoryWorkflowResult{}, err
		}

		initialWait := input.ForkPollInitialWait
		if initialWait <= 0 {
			initialWait = 2 * time.Second
		}
		interval := input.ForkPollInterval
		if interval <= 0 {
			interval = 5 * time.Second
		}
		maxTries := input.ForkPollMaxTries
		if maxTries <= 0 {
			maxTries = 12
		}

		if err := workflow.Sleep(ctx, initialWait); err != nil {
			return StudentRepositoryWorkflowResult{}, err
		}

		var ready bool
		for attempt := 0; attempt < maxTries; attempt++ {
			var poll activities.PollForkReadyOutput
			if err := workflow.ExecuteActivity(ctx, ActivityPollForkReady, activities.PollForkReadyInput{TargetSlug: input.TargetSlug}).Get(ctx, &poll); err != nil {
				return StudentRepositoryWorkflowResult{}, err
			}
			if poll.Ready {
				project = poll.Project
				ready = true
				break
			}
			if err := workflow.Sleep(ctx, interval); err != nil {
				return StudentRepositoryWorkflowResult{}, err
			}
		}
		if !ready {
			logger.Error("fork never became readable", "target_slug", input.TargetSlug, "tries", maxTries)
			return StudentRepositoryWorkflowResult{}, workflow.NewApplicationError("fork did not become readable in time", "ForkTimeout")
		}
	}

	if err := workflow.ExecuteActivity(ctx, ActivityUnprotectBranches, activities.UnprotectBranchesInput{ProjectID: project.ID}).Get(ctx, nil); err != nil {
		return StudentRepositoryWorkflowResult{}, err
	}

	var granted activities.GrantAccessOutput
	if err := workflow.ExecuteActivity(ctx, ActivityGrantAccess, activities.GrantAccessInput{
		ProjectID:      project.ID,
		CourseMemberID: input.CourseMemberID,
	}).Get(ctx, &granted); err != nil {
		return StudentRepositoryWorkflowResult{}, err
	}

	if err := workflow.ExecuteActivity(ctx, ActivityPersistRepository, activities.PersistRepositoryInput{
		CourseMemberID: input.CourseMemberID,
		Project:        project,
	}).Get(ctx, nil); err != nil {
		return StudentRepositoryWorkflowResult{}, err
	}

	logger.Info("student repository workflow completed", "project_path", project.PathWithNamespace)
	return StudentRepositoryWorkflowResult{
		ProjectPath:  project.PathWithNamespace,
		WebURL:       project.WebURL,
		RemoteUserID: granted.RemoteUserID,
	}, nil
}
