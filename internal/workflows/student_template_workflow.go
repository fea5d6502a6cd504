package workflows

import (
	"fmt"
	"path"
	"strings"
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/drewpayment/ctutor-controlplane/internal/activities"
	"github.com/drewpayment/ctutor-controlplane/internal/studenttemplate"
)

// Activity names registered by cmd/worker/main.go; these must match the
// StudentTemplateActivities method names exactly.
const (
	ActivitySelectDeployments     = "SelectDeployments"
	ActivityMarkDeploying         = "MarkDeploying"
	ActivityCloneStudentTemplate  = "CloneStudentTemplate"
	ActivityCloneAssignments      = "CloneAssignments"
	ActivityProcessContent        = "ProcessContent"
	ActivityWriteContentFiles     = "WriteContentFiles"
	ActivityWriteRootReadme       = "WriteRootReadme"
	ActivityCommitAndPushTemplate = "CommitAndPush"
	ActivityFinalizeDeployments   = "FinalizeDeployments"
)

// ContentOverride pins one content to a specific version identifier,
// overriding both the existing deployment and any global_commit (spec
// §4.8 "Commit pinning").
type ContentOverride struct {
	CourseContentID  string
	VersionIdentifier string
}

// ContentTitle supplies the human title the root README's title-path
// column renders for one ltree segment; titles not present here fall back
// to the raw segment (spec §4.8 step 5).
type ContentTitle struct {
	Segment string
	Title   string
}

// StudentTemplateWorkflowInput is the release request driving one
// student-template publish (spec §4.8).
type StudentTemplateWorkflowInput struct {
	CourseID            string
	StudentTemplateURL  string
	AssignmentsURL      string
	ForceRedeploy       bool
	CourseContentIDs    []string
	ParentContentID     string
	IncludeDescendants  bool
	All                 bool
	GlobalCommit        string
	Overrides           []ContentOverride
	Titles              []ContentTitle
	CommitAuthorName    string
	CommitAuthorEmail   string
	ForcePush           bool
}

// StudentTemplateWorkflowResult summarizes one release run.
type StudentTemplateWorkflowResult struct {
	CommitSHA      string
	SucceededCount int
	FailedCount    int
	Failures       map[string]string
}

// StudentTemplateWorkflow reconciles the course's student-template
// repository with its currently selected, released content (spec §4.8),
// the hardest subsystem: commit pinning, per-content file filtering, and
// atomic-at-the-git-commit-level publication.
func StudentTemplateWorkflow(ctx workflow.Context, input StudentTemplateWorkflowInput) (StudentTemplateWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	info := workflow.GetInfo(ctx)
	workflowID := info.WorkflowExecution.ID
	logger.Info("starting student template workflow", "course_id", input.CourseID, "workflow_id", workflowID)

	dbCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})
	gitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 20 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    60 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var selected activities.SelectDeploymentsOutput
	if err := workflow.ExecuteActivity(dbCtx, ActivitySelectDeployments, activities.SelectDeploymentsInput{
		CourseID:           input.CourseID,
		CourseContentIDs:   input.CourseContentIDs,
		ParentContentID:    input.ParentContentID,
		IncludeDescendants: input.IncludeDescendants,
		All:                input.All,
		ForceRedeploy:      input.ForceRedeploy,
	}).Get(ctx, &selected); err != nil {
		return StudentTemplateWorkflowResult{}, err
	}
	if len(selected.Selections) == 0 {
		logger.Info("no deployments selected, nothing to do")
		return StudentTemplateWorkflowResult{Failures: map[string]string{}}, nil
	}

	var marked activities.MarkDeployingOutput
	if err := workflow.ExecuteActivity(dbCtx, ActivityMarkDeploying, activities.MarkDeployingInput{
		Selections:    selected.Selections,
		WorkflowID:    workflowID,
		ForceRedeploy: input.ForceRedeploy,
	}).Get(ctx, &marked); err != nil {
		return StudentTemplateWorkflowResult{}, err
	}

	templateDir := path.Join("/tmp/ctutor-student-template", workflowID)
	assignmentsDir := path.Join("/tmp/ctutor-assignments", workflowID)

	defer func() {
		_ = workflow.ExecuteActivity(gitCtx, "CleanupWorkDir", templateDir).Get(ctx, nil)
		_ = workflow.ExecuteActivity(gitCtx, "CleanupWorkDir", assignmentsDir).Get(ctx, nil)
	}()

	if err := workflow.ExecuteActivity(gitCtx, ActivityCloneStudentTemplate, activities.CloneStudentTemplateInput{
		RemoteURL:         input.StudentTemplateURL,
		WorkDir:           templateDir,
		CommitAuthorName:  input.CommitAuthorName,
		CommitAuthorEmail: input.CommitAuthorEmail,
	}).Get(ctx, nil); err != nil {
		return failAll(ctx, dbCtx, logger, marked.Marked, "could not clone student template repository")
	}

	var assignments activities.CloneAssignmentsOutput
	if err := workflow.ExecuteActivity(gitCtx, ActivityCloneAssignments, activities.CloneAssignmentsInput{
		RemoteURL: input.AssignmentsURL,
		WorkDir:   assignmentsDir,
	}).Get(ctx, &assignments); err != nil {
		return failAll(ctx, dbCtx, logger, marked.Marked, "could not clone assignments repository")
	}

	overrides := map[string]string{}
	for _, o := range input.Overrides {
		overrides[o.CourseContentID] = o.VersionIdentifier
	}
	titles := map[string]string{}
	for _, t := range input.Titles {
		titles[t.Segment] = t.Title
	}

	var succeeded []activities.SelectedDeployment
	var failed []activities.FailedDeployment
	var entries []studenttemplate.AssignmentEntry

	for _, sel := range marked.Marked {
		var processed activities.ProcessContentOutput
		err := workflow.ExecuteActivity(gitCtx, ActivityProcessContent, activities.ProcessContentInput{
			AssignmentsDir: assignmentsDir,
			Content:        sel,
			GlobalCommit:   input.GlobalCommit,
			Override:       overrides[sel.ContentID],
		}).Get(ctx, &processed)

		if err != nil || !processed.Success {
			msg := "processing failed"
			if err != nil {
				msg = err.Error()
			} else if processed.ErrorMessage != "" {
				msg = processed.ErrorMessage
			}
			logger.Warn("content processing failed", "content_id", sel.ContentID, "error", msg)
			failed = append(failed, activities.FailedDeployment{Content: sel, Message: msg})
			continue
		}

		if err := workflow.ExecuteActivity(gitCtx, ActivityWriteContentFiles, activities.WriteFilesInput{
			WorkDir:        templateDir,
			DeploymentPath: processed.DeploymentPath,
			Files:          processed.Files,
		}).Get(ctx, nil); err != nil {
			failed = append(failed, activities.FailedDeployment{Content: sel, Message: "could not write files: " + err.Error()})
			continue
		}

		sel.DeploymentPath = processed.DeploymentPath
		sel.ExecutionBackendID = processed.ExecutionBackendID
		succeeded = append(succeeded, sel)

		entries = append(entries, studenttemplate.AssignmentEntry{
			TitlePath:      studenttemplate.BuildTitlePath(titlePathSegments(processed.DeploymentPath, titles)),
			DeploymentPath: processed.DeploymentPath,
			Title:          path.Base(processed.DeploymentPath),
			VersionTag:     processed.ResolvedCommit,
		})
	}

	readme := studenttemplate.GenerateRootReadme(entries)
	if err := workflow.ExecuteActivity(gitCtx, ActivityWriteRootReadme, activities.WriteRootReadmeInput{
		WorkDir: templateDir,
		Readme:  readme,
	}).Get(ctx, nil); err != nil {
		return failAll(ctx, dbCtx, logger, marked.Marked, "could not write root README")
	}

	commitMsg := fmt.Sprintf("release: %d succeeded, %d failed", len(succeeded), len(failed))
	var commit activities.CommitAndPushOutput
	if err := workflow.ExecuteActivity(gitCtx, ActivityCommitAndPushTemplate, activities.CommitAndPushInput{
		WorkDir:           templateDir,
		Message:           commitMsg,
		CommitAuthorName:  input.CommitAuthorName,
		CommitAuthorEmail: input.CommitAuthorEmail,
		Force:             input.ForcePush,
	}).Get(ctx, &commit); err != nil {
		return failAll(ctx, dbCtx, logger, marked.Marked, "Git push failed")
	}

	if err := workflow.ExecuteActivity(dbCtx, ActivityFinalizeDeployments, activities.FinalizeDeploymentsInput{
		Succeeded: succeeded,
		Failed:    failed,
		CommitSHA: commit.SHA,
	}).Get(ctx, nil); err != nil {
		return StudentTemplateWorkflowResult{}, err
	}

	failures := map[string]string{}
	for _, f := range failed {
		failures[f.Content.ContentID] = f.Message
	}

	logger.Info("student template workflow completed", "succeeded", len(succeeded), "failed", len(failed), "commit", commit.SHA)
	return StudentTemplateWorkflowResult{
		CommitSHA:      commit.SHA,
		SucceededCount: len(succeeded),
		FailedCount:    len(failed),
		Failures:       failures,
	}, nil
}

// failAll transitions every marked deployment to failed with message, used
// for the workflow-level failures of spec §4.8's "Failure model" (clone,
// push).
func failAll(ctx workflow.Context, dbCtx workflow.Context, logger log.Logger, marked []activities.SelectedDeployment, message string) (StudentTemplateWorkflowResult, error) {
	logger.Error("student template workflow failed", "reason", message)
	failed := make([]activities.FailedDeployment, 0, len(marked))
	for _, sel := range marked {
		failed = append(failed, activities.FailedDeployment{Content: sel, Message: message})
	}
	_ = workflow.ExecuteActivity(dbCtx, ActivityFinalizeDeployments, activities.FinalizeDeploymentsInput{
		Failed: failed,
	}).Get(ctx, nil)

	failures := map[string]string{}
	for _, f := range failed {
		failures[f.Content.ContentID] = f.Message
	}
	return StudentTemplateWorkflowResult{FailedCount: len(failed), Failures: failures}, fmt.Errorf("%s", message)
}

// titlePathSegments builds the ltree-segment/title pairs for a
// deployment_path, using the caller-supplied title map (content titles
// loaded once up front) and falling back to the raw segment.
func titlePathSegments(deploymentPath string, titles map[string]string) []studenttemplate.TitlePathSegment {
	raw := strings.Split(deploymentPath, "/")
	segs := make([]studenttemplate.TitlePathSegment, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		segs = append(segs, studenttemplate.TitlePathSegment{Segment: s, Title: titles[s]})
	}
	return segs
}
