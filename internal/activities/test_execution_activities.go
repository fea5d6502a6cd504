package activities

import (
	"context"
	"log/slog"
	"os"
	"path"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/drewpayment/ctutor-controlplane/internal/clients"
	"github.com/drewpayment/ctutor-controlplane/internal/store"
	"github.com/drewpayment/ctutor-controlplane/internal/studenttemplate"
)

// TestExecutionActivities backs the Test Execution Workflow (spec §4.10):
// checking out the student and reference repositories at pinned commits,
// dispatching to the backend-specific executor, and committing the result.
type TestExecutionActivities struct {
	results *store.ResultStore
	backend *clients.TestBackendClient
	git     GitRunner
	logger  *slog.Logger
}

func NewTestExecutionActivities(results *store.ResultStore, backend *clients.TestBackendClient, git GitRunner, logger *slog.Logger) *TestExecutionActivities {
	if logger == nil {
		logger = slog.Default()
	}
	return &TestExecutionActivities{results: results, backend: backend, git: git, logger: logger}
}

// RepoRef pins one repository checkout to a commit, with an optional token
// for private-repo access (spec §4.10 "TestJob").
type RepoRef struct {
	URL    string
	Commit string
	Token  string
}

// CloneRepoInput names the working directory an activity should (re)create.
type CloneRepoInput struct {
	Repo    RepoRef
	WorkDir string
}

// CloneRepo removes any stale working tree at WorkDir (so retries are safe)
// then clones Repo pinned to its commit (spec §4.10 step 1).
func (a *TestExecutionActivities) CloneRepo(ctx context.Context, in CloneRepoInput) error {
	if err := a.git.RemoveAll(ctx, in.WorkDir); err != nil {
		return err
	}
	if err := a.git.Clone(ctx, in.Repo.URL, in.WorkDir, in.Repo.Commit); err != nil {
		return apperrors.Upstream("cloning "+in.Repo.URL+" at "+in.Repo.Commit, err)
	}
	return nil
}

// CleanupWorkspace removes a workflow's temporary directory, including on
// failure paths (spec §5 "Filesystem temporary directories").
func (a *TestExecutionActivities) CleanupWorkspace(ctx context.Context, dir string) error {
	return a.git.RemoveAll(ctx, dir)
}

// RunTestsInput is the fully-resolved invocation contract handed to the
// backend-specific executor (spec §4.10 step 2).
type RunTestsInput struct {
	Backend           string
	StudentDir        string
	ReferenceDir      string
	DeploymentPath    string // relative path within ReferenceDir holding test/spec files
	JobConfig         map[string]any
	BackendProperties map[string]any
}

type RunTestsOutput struct {
	Passed  int
	Failed  int
	Total   int
	Details map[string]any
}

// RunTests reads meta.yaml from the reference checkout to locate the test
// and spec files declared in properties.testFiles, then dispatches the job
// to the backend executor (spec §4.10 step 2; spec §6 "testFiles").
func (a *TestExecutionActivities) RunTests(ctx context.Context, in RunTestsInput) (RunTestsOutput, error) {
	testFile, specFile, err := a.resolveTestFiles(in.ReferenceDir, in.DeploymentPath)
	if err != nil {
		return RunTestsOutput{}, err
	}

	result, err := a.backend.Run(ctx, clients.TestBackendRequest{
		Backend:           in.Backend,
		StudentPath:       in.StudentDir,
		ReferencePath:     in.ReferenceDir,
		TestFile:          testFile,
		SpecFile:          specFile,
		JobConfig:         in.JobConfig,
		BackendProperties: in.BackendProperties,
	})
	if err != nil {
		return RunTestsOutput{}, err
	}

	return RunTestsOutput{Passed: result.Passed, Failed: result.Failed, Total: result.Total, Details: result.Details}, nil
}

func (a *TestExecutionActivities) resolveTestFiles(referenceDir, deploymentPath string) (testFile, specFile string, err error) {
	metaRel := path.Join(deploymentPath, "meta.yaml")
	raw, readErr := os.ReadFile(path.Join(referenceDir, metaRel))
	if readErr != nil {
		// No meta.yaml: fall back to the conventional layout under the
		// deployment path (spec §6 testFiles is optional metadata).
		return path.Join(deploymentPath, "test"), path.Join(deploymentPath, "spec"), nil
	}
	meta, parseErr := studenttemplate.ParseMeta(raw)
	if parseErr != nil {
		return "", "", apperrors.Validation("parsing meta.yaml at "+metaRel, parseErr)
	}
	if len(meta.Properties.TestFiles) == 0 {
		return path.Join(deploymentPath, "test"), path.Join(deploymentPath, "spec"), nil
	}
	testFile = path.Join(deploymentPath, meta.Properties.TestFiles[0])
	if len(meta.Properties.TestFiles) > 1 {
		specFile = path.Join(deploymentPath, meta.Properties.TestFiles[1])
	}
	return testFile, specFile, nil
}

// CommitResultInput carries the backend's outcome back onto the
// pre-created Result row (spec §4.10 step 3).
type CommitResultInput struct {
	ResultID string
	Status   string // "finished" or "failed"
	Score    float64
	Details  map[string]any
}

// CommitResult writes the final status, score, and details onto the Result
// row the API created before submitting this workflow.
func (a *TestExecutionActivities) CommitResult(ctx context.Context, in CommitResultInput) error {
	return a.results.UpdateStatus(ctx, in.ResultID, in.Status, in.Score, in.Details)
}
