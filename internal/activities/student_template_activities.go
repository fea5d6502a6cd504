package activities

import (
	"context"
	"log/slog"
	"path"
	"time"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/drewpayment/ctutor-controlplane/internal/authz"
	"github.com/drewpayment/ctutor-controlplane/internal/deployment"
	"github.com/drewpayment/ctutor-controlplane/internal/store"
	"github.com/drewpayment/ctutor-controlplane/internal/studenttemplate"
)

// StudentTemplateActivities backs the Student-Template Workflow (spec §4.8):
// deployment selection and status transitions, cloning, per-content file
// filtering, and the final commit/push. All Git and database I/O lives
// here; the workflow itself only sequences these calls.
type StudentTemplateActivities struct {
	deployments       *store.DeploymentStore
	contents          *store.CourseContentStore
	executionBackends *store.ExecutionBackendStore
	git               GitRunner
	logger            *slog.Logger
}

func NewStudentTemplateActivities(deployments *store.DeploymentStore, contents *store.CourseContentStore, executionBackends *store.ExecutionBackendStore, git GitRunner, logger *slog.Logger) *StudentTemplateActivities {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudentTemplateActivities{deployments: deployments, contents: contents, executionBackends: executionBackends, git: git, logger: logger}
}

// SelectedDeployment is one content/deployment pair carried through the
// workflow from selection through finalization.
type SelectedDeployment struct {
	ContentID          string
	DeploymentID       string
	PreviousVersion    int
	DeploymentPath     string
	ExampleIdentifier  string
	ExistingCommit     string
	ExecutionBackendID string
}

// SelectDeploymentsInput mirrors the release selection grammar (spec §4.8
// "Selection semantics").
type SelectDeploymentsInput struct {
	CourseID           string
	CourseContentIDs   []string
	ParentContentID    string
	IncludeDescendants bool
	All                bool
	ForceRedeploy      bool
}

type SelectDeploymentsOutput struct {
	Selections []SelectedDeployment
}

// SelectDeployments resolves a release request into the concrete set of
// content/deployment pairs to process. Explicit, parent+descendants and All
// selections are returned regardless of current status; the default
// selection (none of these given) applies the pending/failed (plus deployed
// when force_redeploy) rule from deployment.SelectableForRelease.
// MarkDeploying then begins only pending/failed records, and deployed records
// only when force_redeploy is set, so an explicitly selected deployed record
// is skipped without force_redeploy.
func (a *StudentTemplateActivities) SelectDeployments(ctx context.Context, in SelectDeploymentsInput) (SelectDeploymentsOutput, error) {
	var contentIDs []string
	explicit := len(in.CourseContentIDs) > 0 || in.ParentContentID != ""

	switch {
	case len(in.CourseContentIDs) > 0:
		contentIDs = in.CourseContentIDs
	case in.ParentContentID != "":
		parent, err := a.contents.Get(ctx, in.ParentContentID)
		if err != nil {
			return SelectDeploymentsOutput{}, err
		}
		if in.IncludeDescendants {
			descendants, err := a.contents.Descendants(ctx, in.CourseID, parent.Path)
			if err != nil {
				return SelectDeploymentsOutput{}, err
			}
			for _, d := range descendants {
				contentIDs = append(contentIDs, d.ID)
			}
		} else {
			contentIDs = []string{parent.ID}
		}
	default:
		all, err := a.contents.ListByCourseFiltered(ctx, in.CourseID, authz.Decision{Permitted: true, Filter: authz.Filter{Unrestricted: true}})
		if err != nil {
			return SelectDeploymentsOutput{}, err
		}
		for _, c := range all {
			contentIDs = append(contentIDs, c.ID)
		}
	}

	out := SelectDeploymentsOutput{}
	for _, contentID := range contentIDs {
		d, err := a.deployments.GetByContentID(ctx, contentID)
		if apperrors.Is(err, apperrors.KindNotFound) {
			continue
		}
		if err != nil {
			return SelectDeploymentsOutput{}, err
		}
		if !in.All && !explicit && !deployment.SelectableForRelease(d, in.ForceRedeploy) {
			continue
		}
		out.Selections = append(out.Selections, SelectedDeployment{
			ContentID:          contentID,
			DeploymentID:       d.ID,
			PreviousVersion:    d.Version,
			DeploymentPath:     d.DeploymentPath,
			ExampleIdentifier:  d.ExampleIdentifier,
			ExistingCommit:     d.VersionIdentifier,
			ExecutionBackendID: d.ExecutionBackendID,
		})
	}
	return out, nil
}

// MarkDeployingInput carries the selections to transition into `deploying`.
type MarkDeployingInput struct {
	Selections    []SelectedDeployment
	WorkflowID    string
	ForceRedeploy bool
}

type MarkDeployingOutput struct {
	Marked []SelectedDeployment
}

// MarkDeploying transitions every selected deployment to `deploying`,
// appending a history entry per record and persisting the owning workflow
// id (spec §4.8 step 1). A selection whose current status can't transition
// (e.g. a concurrent workflow already moved it) is skipped, not fatal.
func (a *StudentTemplateActivities) MarkDeploying(ctx context.Context, in MarkDeployingInput) (MarkDeployingOutput, error) {
	out := MarkDeployingOutput{}
	now := time.Now()
	for _, sel := range in.Selections {
		d, err := a.deployments.GetByContentID(ctx, sel.ContentID)
		if err != nil {
			a.logger.Warn("skipping selection missing deployment row", "content_id", sel.ContentID, "error", err)
			continue
		}
		t, err := deployment.BeginDeploying(d, in.WorkflowID, in.ForceRedeploy, now)
		if err != nil {
			a.logger.Warn("skipping selection that cannot begin deploying", "content_id", sel.ContentID, "error", err)
			continue
		}
		if err := a.deployments.ApplyTransition(ctx, d.Version, t.Deployment, t.History); err != nil {
			a.logger.Warn("skipping selection whose transition conflicted", "content_id", sel.ContentID, "error", err)
			continue
		}
		sel.PreviousVersion = t.Deployment.Version
		sel.DeploymentPath = t.Deployment.DeploymentPath
		out.Marked = append(out.Marked, sel)
	}
	return out, nil
}

type CloneStudentTemplateInput struct {
	RemoteURL         string
	WorkDir           string
	CommitAuthorName  string
	CommitAuthorEmail string
}

type CloneStudentTemplateOutput struct {
	Initialized bool
}

// CloneStudentTemplate clones the student-template project, or initializes
// a fresh local repo on `main` when the remote is empty or unreachable
// (spec §4.8 step 2).
func (a *StudentTemplateActivities) CloneStudentTemplate(ctx context.Context, in CloneStudentTemplateInput) (CloneStudentTemplateOutput, error) {
	if err := a.git.CloneOrInit(ctx, in.RemoteURL, in.WorkDir); err != nil {
		return CloneStudentTemplateOutput{}, apperrors.Upstream("cloning student template repository", err)
	}
	return CloneStudentTemplateOutput{}, nil
}

type CloneAssignmentsInput struct {
	RemoteURL string
	WorkDir   string
}

type CloneAssignmentsOutput struct {
	HeadCommit string
}

// CloneAssignments clones the assignments repository, the source of truth
// for released content (spec §4.8 step 3). Failure here is fatal to the
// whole workflow.
func (a *StudentTemplateActivities) CloneAssignments(ctx context.Context, in CloneAssignmentsInput) (CloneAssignmentsOutput, error) {
	if err := a.git.Clone(ctx, in.RemoteURL, in.WorkDir, ""); err != nil {
		return CloneAssignmentsOutput{}, apperrors.Upstream("cloning assignments repository", err)
	}
	sha, err := a.git.ResolveCommit(ctx, in.WorkDir, "HEAD")
	if err != nil {
		return CloneAssignmentsOutput{}, apperrors.Upstream("resolving assignments HEAD", err)
	}
	return CloneAssignmentsOutput{HeadCommit: sha}, nil
}

// ProcessContentInput describes one content to release.
type ProcessContentInput struct {
	AssignmentsDir string
	Content        SelectedDeployment
	GlobalCommit   string
	Override       string // per-content version_identifier override
}

type ProcessContentOutput struct {
	Success            bool
	ErrorMessage       string
	DeploymentPath     string
	ResolvedCommit     string
	ExecutionBackendID string
	Files              map[string][]byte
}

// ProcessContent resolves the commit to release for one content, links its
// execution backend from meta.yaml if not already set, loads the file tree
// at that commit, and filters it down to what a student may see (spec §4.8
// step 4). Failures here are recorded against this content only; the
// workflow continues with the rest of the selection.
func (a *StudentTemplateActivities) ProcessContent(ctx context.Context, in ProcessContentInput) (ProcessContentOutput, error) {
	sel := in.Content
	deploymentPath := sel.DeploymentPath
	if deploymentPath == "" {
		deploymentPath = sel.ExampleIdentifier
	}
	if deploymentPath == "" {
		return ProcessContentOutput{Success: false, ErrorMessage: "no deployment_path could be derived"}, nil
	}

	commitRef := sel.ExistingCommit
	if in.GlobalCommit != "" {
		commitRef = in.GlobalCommit
	}
	if in.Override != "" {
		commitRef = in.Override
	}
	if commitRef == "" {
		commitRef = "HEAD"
	}

	resolved, err := a.git.ResolveCommit(ctx, in.AssignmentsDir, commitRef)
	if err != nil {
		return ProcessContentOutput{Success: false, ErrorMessage: "could not resolve commit " + commitRef}, nil
	}

	relPaths, err := a.git.ListTree(ctx, in.AssignmentsDir, resolved, deploymentPath)
	if err != nil || len(relPaths) == 0 {
		return ProcessContentOutput{Success: false, ErrorMessage: "content tree is empty at " + deploymentPath}, nil
	}

	tree := studenttemplate.FileTree{}
	for _, rel := range relPaths {
		data, err := a.git.ReadFileAt(ctx, in.AssignmentsDir, resolved, path.Join(deploymentPath, rel))
		if err != nil {
			return ProcessContentOutput{Success: false, ErrorMessage: "could not read " + rel}, nil
		}
		tree[rel] = data
	}

	var meta *studenttemplate.Meta
	if raw, ok := tree["meta.yaml"]; ok {
		meta, err = studenttemplate.ParseMeta(raw)
		if err != nil {
			return ProcessContentOutput{Success: false, ErrorMessage: "invalid meta.yaml: " + err.Error()}, nil
		}
	}

	executionBackendID := sel.ExecutionBackendID
	if executionBackendID == "" && meta != nil && meta.Properties.ExecutionBackend.Slug != "" {
		backend, err := a.executionBackends.FindBySlug(ctx, meta.Properties.ExecutionBackend.Slug)
		if err == nil {
			executionBackendID = backend.ID
			if linkErr := a.contents.LinkExecutionBackend(ctx, sel.ContentID, backend.ID); linkErr != nil {
				a.logger.Warn("failed linking execution backend", "content_id", sel.ContentID, "error", linkErr)
			}
		} else if !apperrors.Is(err, apperrors.KindNotFound) {
			return ProcessContentOutput{}, err
		}
	}

	result := studenttemplate.FilterForStudents(tree, meta)

	return ProcessContentOutput{
		Success:            true,
		DeploymentPath:     deploymentPath,
		ResolvedCommit:     resolved,
		ExecutionBackendID: executionBackendID,
		Files:              result.Files,
	}, nil
}

type WriteFilesInput struct {
	WorkDir        string
	DeploymentPath string
	Files          map[string][]byte
}

// WriteContentFiles writes one content's filtered files under its
// deployment_path inside the student-template working tree.
func (a *StudentTemplateActivities) WriteContentFiles(ctx context.Context, in WriteFilesInput) error {
	for rel, data := range in.Files {
		target := path.Join(in.DeploymentPath, rel)
		if err := a.git.WriteFile(ctx, in.WorkDir, target, data); err != nil {
			return apperrors.Internal("writing "+target, err)
		}
	}
	return nil
}

type WriteRootReadmeInput struct {
	WorkDir string
	Readme  []byte
}

// WriteRootReadme writes the generated assignment index to the
// student-template repo root (spec §4.8 step 5).
func (a *StudentTemplateActivities) WriteRootReadme(ctx context.Context, in WriteRootReadmeInput) error {
	if err := a.git.WriteFile(ctx, in.WorkDir, "README.md", in.Readme); err != nil {
		return apperrors.Internal("writing root README", err)
	}
	return nil
}

type CommitAndPushInput struct {
	WorkDir           string
	Message           string
	CommitAuthorName  string
	CommitAuthorEmail string
	Force             bool
}

type CommitAndPushOutput struct {
	SHA     string
	Changed bool
}

// CommitAndPush commits the working tree and pushes `main` (spec §4.8 step
// 6). An empty commit (no changes) is treated as success.
func (a *StudentTemplateActivities) CommitAndPush(ctx context.Context, in CommitAndPushInput) (CommitAndPushOutput, error) {
	sha, changed, err := a.git.CommitAll(ctx, in.WorkDir, in.Message, in.CommitAuthorName, in.CommitAuthorEmail)
	if err != nil {
		return CommitAndPushOutput{}, apperrors.Internal("committing student template", err)
	}
	if changed {
		if err := a.git.Push(ctx, in.WorkDir, "main", in.Force); err != nil {
			return CommitAndPushOutput{}, apperrors.Upstream("pushing student template", err)
		}
	}
	return CommitAndPushOutput{SHA: sha, Changed: changed}, nil
}

// FailedDeployment pairs a selection with the reason it did not release.
type FailedDeployment struct {
	Content SelectedDeployment
	Message string
}

type FinalizeDeploymentsInput struct {
	Succeeded []SelectedDeployment
	Failed    []FailedDeployment
	CommitSHA string
}

// FinalizeDeployments transitions successfully processed, still-`deploying`
// records to `deployed`, and any failed ones to `failed` (spec §4.8 step
// 7). Used both after a successful push and, with every selection as
// failed, after a workflow-level failure.
func (a *StudentTemplateActivities) FinalizeDeployments(ctx context.Context, in FinalizeDeploymentsInput) error {
	now := time.Now()
	for _, sel := range in.Succeeded {
		d, err := a.deployments.GetByContentID(ctx, sel.ContentID)
		if err != nil {
			a.logger.Warn("could not finalize deployment as deployed", "content_id", sel.ContentID, "error", err)
			continue
		}
		if d.DeploymentStatus != store.DeploymentStatusDeploying {
			continue
		}
		t, err := deployment.Deployed(d, sel.DeploymentPath, in.CommitSHA, now)
		if err != nil {
			a.logger.Warn("could not transition deployment to deployed", "content_id", sel.ContentID, "error", err)
			continue
		}
		if err := a.deployments.ApplyTransition(ctx, d.Version, t.Deployment, t.History); err != nil {
			return err
		}
	}
	for _, f := range in.Failed {
		d, err := a.deployments.GetByContentID(ctx, f.Content.ContentID)
		if err != nil {
			a.logger.Warn("could not finalize deployment as failed", "content_id", f.Content.ContentID, "error", err)
			continue
		}
		if d.DeploymentStatus != store.DeploymentStatusDeploying {
			continue
		}
		t := deployment.Failed(d, f.Message, now)
		if err := a.deployments.ApplyTransition(ctx, d.Version, t.Deployment, t.History); err != nil {
			return err
		}
	}
	return nil
}

// CleanupWorkDir removes a workflow's temporary Git working directory,
// including on failure paths (spec §5 "Shared resources").
func (a *StudentTemplateActivities) CleanupWorkDir(ctx context.Context, dir string) error {
	if dir == "" {
		return nil
	}
	return a.git.RemoveAll(ctx, dir)
}
