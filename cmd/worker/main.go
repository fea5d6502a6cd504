// Command worker hosts the Temporal worker process for the course
// infrastructure control plane: it registers the Hierarchy, Student-
// Template, Student-Repository, and Test-Execution workflows (spec §4.7-
// §4.10) and their backing activities, then blocks serving the configured
// task queue.
package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/drewpayment/ctutor-controlplane/internal/activities"
	"github.com/drewpayment/ctutor-controlplane/internal/clients"
	"github.com/drewpayment/ctutor-controlplane/internal/config"
	"github.com/drewpayment/ctutor-controlplane/internal/store"
	"github.com/drewpayment/ctutor-controlplane/internal/workflows"
)

func main() {
	cfg := config.FromEnv()
	logger := slog.Default()

	ctx := context.Background()
	pool, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("opening database pool: %v", err)
	}
	defer pool.Close()

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("unable to create temporal client: %v", err)
	}
	defer temporalClient.Close()

	gitHost := clients.NewGitHostClient(cfg.GitHostingURL, cfg.GitHostingToken)
	testBackend := clients.NewTestBackendClient(cfg.TestExecutionBackendURL)
	gitRunner := activities.NewCLIGitRunner()

	// The object-store client (internal/clients.StorageClient) is not wired
	// into this worker: every workflow it runs (C7-C10) sources content from
	// Git (assignments repo is the release-time source of truth per spec
	// §4.8), never from the example object store directly. StorageClient
	// backs the out-of-scope HTTP API's example upload/presigned-URL
	// endpoints instead; see DESIGN.md.

	hierarchyStore := store.NewHierarchyStore(pool)
	submissionGroupStore := store.NewSubmissionGroupStore(pool)
	deploymentStore := store.NewDeploymentStore(pool)
	courseContentStore := store.NewCourseContentStore(pool)
	executionBackendStore := store.NewExecutionBackendStore(pool)
	resultStore := store.NewResultStore(pool)

	hierarchyActivities := activities.NewHierarchyActivities(hierarchyStore, gitHost, logger)
	studentRepositoryActivities := activities.NewStudentRepositoryActivities(hierarchyStore, submissionGroupStore, gitHost, logger)
	studentTemplateActivities := activities.NewStudentTemplateActivities(deploymentStore, courseContentStore, executionBackendStore, gitRunner, logger)
	testExecutionActivities := activities.NewTestExecutionActivities(resultStore, testBackend, gitRunner, logger)

	w := worker.New(temporalClient, cfg.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.HierarchyWorkflow)
	w.RegisterWorkflow(workflows.StudentTemplateWorkflow)
	w.RegisterWorkflow(workflows.StudentRepositoryWorkflow)
	w.RegisterWorkflow(workflows.TestExecutionWorkflow)

	w.RegisterActivity(hierarchyActivities.EnsureOrganizationGroup)
	w.RegisterActivity(hierarchyActivities.EnsureCourseFamilyGroup)
	w.RegisterActivity(hierarchyActivities.EnsureCourseAndProjects)
	w.RegisterActivity(hierarchyActivities.EnsureContentTypes)
	w.RegisterActivity(hierarchyActivities.EnsureCourseRoles)
	w.RegisterActivity(hierarchyActivities.EnsureMembership)

	w.RegisterActivity(studentTemplateActivities.SelectDeployments)
	w.RegisterActivity(studentTemplateActivities.MarkDeploying)
	w.RegisterActivity(studentTemplateActivities.CloneStudentTemplate)
	w.RegisterActivity(studentTemplateActivities.CloneAssignments)
	w.RegisterActivity(studentTemplateActivities.ProcessContent)
	w.RegisterActivity(studentTemplateActivities.WriteContentFiles)
	w.RegisterActivity(studentTemplateActivities.WriteRootReadme)
	w.RegisterActivity(studentTemplateActivities.CommitAndPush)
	w.RegisterActivity(studentTemplateActivities.FinalizeDeployments)
	w.RegisterActivity(studentTemplateActivities.CleanupWorkDir)

	w.RegisterActivity(studentRepositoryActivities.FindExistingFork)
	w.RegisterActivity(studentRepositoryActivities.RequestFork)
	w.RegisterActivity(studentRepositoryActivities.PollForkReady)
	w.RegisterActivity(studentRepositoryActivities.UnprotectBranches)
	w.RegisterActivity(studentRepositoryActivities.GrantAccess)
	w.RegisterActivity(studentRepositoryActivities.PersistRepository)

	w.RegisterActivity(testExecutionActivities.CloneRepo)
	w.RegisterActivity(testExecutionActivities.RunTests)
	w.RegisterActivity(testExecutionActivities.CommitResult)
	w.RegisterActivity(testExecutionActivities.CleanupWorkspace)

	log.Printf("worker starting on task queue %q (temporal %s/%s)", cfg.TaskQueue, cfg.TemporalAddress, cfg.TemporalNamespace)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker stopped: %v", err)
	}
}
