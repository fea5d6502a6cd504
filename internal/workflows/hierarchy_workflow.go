package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/drewpayment/ctutor-controlplane/internal/activities"
	"github.com/drewpayment/ctutor-controlplane/internal/store"
	"github.com/drewpayment/ctutor-controlplane/pkg/types"
)

// Activity names registered by cmd/worker/main.go; these must match the
// HierarchyActivities method names exactly.
const (
	ActivityEnsureOrganizationGroup = "EnsureOrganizationGroup"
	ActivityEnsureCourseFamilyGroup = "EnsureCourseFamilyGroup"
	ActivityEnsureCourseAndProjects = "EnsureCourseAndProjects"
	ActivityEnsureContentTypes      = "EnsureContentTypes"
	ActivityEnsureCourseRoles       = "EnsureCourseRoles"
	ActivityEnsureMembership        = "EnsureMembership"
)

// HierarchyWorkflowInput is the deployment configuration driving
// Organization → CourseFamily → Course reconciliation (spec §4.7).
type HierarchyWorkflowInput struct {
	OrganizationPath string
	OrganizationType string
	CourseFamilyPath string
	CoursePath       string
	ContentTypes     []activities.ContentTypeSpec
	Users            []activities.UserSpec
	CreatedBy        string
}

// HierarchyWorkflowResult reports the reconciled entity ids and remote
// project identities.
type HierarchyWorkflowResult struct {
	OrganizationID string
	CourseFamilyID string
	CourseID       string
	Projects       types.GitlabCourseProjects
	MemberIDs      []string
}

// HierarchyWorkflow orchestrates creation/reconciliation of the
// Organization/CourseFamily/Course hierarchy and its backing remote
// groups and projects (spec §4.7). Every step is idempotent by natural
// key, so retrying the whole workflow after a partial failure never
// duplicates a row or a remote resource.
func HierarchyWorkflow(ctx workflow.Context, input HierarchyWorkflowInput) (HierarchyWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting hierarchy workflow", "organization", input.OrganizationPath, "course", input.CoursePath)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    100 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var org activities.EnsureOrganizationOutput
	if err := workflow.ExecuteActivity(ctx, ActivityEnsureOrganizationGroup, activities.EnsureOrganizationInput{
		Path:             input.OrganizationPath,
		OrganizationType: store.OrganizationType(input.OrganizationType),
		CreatedBy:        input.CreatedBy,
	}).Get(ctx, &org); err != nil {
		return HierarchyWorkflowResult{}, err
	}

	var family activities.EnsureCourseFamilyOutput
	if err := workflow.ExecuteActivity(ctx, ActivityEnsureCourseFamilyGroup, activities.EnsureCourseFamilyInput{
		OrganizationID: org.OrganizationID,
		Path:           input.CourseFamilyPath,
		ParentGroupID:  org.GroupID,
		CreatedBy:      input.CreatedBy,
	}).Get(ctx, &family); err != nil {
		return HierarchyWorkflowResult{}, err
	}

	var course activities.EnsureCourseOutput
	if err := workflow.ExecuteActivity(ctx, ActivityEnsureCourseAndProjects, activities.EnsureCourseInput{
		CourseFamilyID: family.CourseFamilyID,
		OrganizationID: org.OrganizationID,
		Path:           input.CoursePath,
		ParentGroupID:  family.GroupID,
		CreatedBy:      input.CreatedBy,
	}).Get(ctx, &course); err != nil {
		return HierarchyWorkflowResult{}, err
	}

	if len(input.ContentTypes) > 0 {
		if err := workflow.ExecuteActivity(ctx, ActivityEnsureContentTypes, activities.EnsureContentTypesInput{
			CourseID:  course.CourseID,
			Types:     input.ContentTypes,
			CreatedBy: input.CreatedBy,
		}).Get(ctx, nil); err != nil {
			return HierarchyWorkflowResult{}, err
		}
	}

	if err := workflow.ExecuteActivity(ctx, ActivityEnsureCourseRoles, activities.EnsureCourseRolesInput{
		CreatedBy: input.CreatedBy,
	}).Get(ctx, nil); err != nil {
		return HierarchyWorkflowResult{}, err
	}

	memberIDs := make([]string, 0, len(input.Users))
	for _, u := range input.Users {
		var member activities.EnsureMembershipOutput
		if err := workflow.ExecuteActivity(ctx, ActivityEnsureMembership, activities.EnsureMembershipInput{
			CourseID:  course.CourseID,
			User:      u,
			CreatedBy: input.CreatedBy,
		}).Get(ctx, &member); err != nil {
			logger.Error("failed to reconcile course membership", "provider_account_id", u.ProviderAccountID, "error", err)
			return HierarchyWorkflowResult{}, err
		}
		memberIDs = append(memberIDs, member.CourseMemberID)
	}

	logger.Info("hierarchy workflow completed", "course_id", course.CourseID, "members", len(memberIDs))
	return HierarchyWorkflowResult{
		OrganizationID: org.OrganizationID,
		CourseFamilyID: family.CourseFamilyID,
		CourseID:       course.CourseID,
		Projects:       course.Projects,
		MemberIDs:      memberIDs,
	}, nil
}
