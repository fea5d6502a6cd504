package activities

import (
	"context"
	"log/slog"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/drewpayment/ctutor-controlplane/internal/clients"
	"github.com/drewpayment/ctutor-controlplane/internal/store"
	"github.com/drewpayment/ctutor-controlplane/pkg/types"
)

// HierarchyActivities backs the Hierarchy Workflow's five reconciliation
// steps (spec §4.7): remote group/project creation, content-type defaults,
// role defaults, and per-user membership, each keyed by natural key so a
// retried activity never duplicates a row or a remote group/project.
type HierarchyActivities struct {
	hierarchy *store.HierarchyStore
	gitHost   *clients.GitHostClient
	logger    *slog.Logger
}

func NewHierarchyActivities(hierarchy *store.HierarchyStore, gitHost *clients.GitHostClient, logger *slog.Logger) *HierarchyActivities {
	if logger == nil {
		logger = slog.Default()
	}
	return &HierarchyActivities{hierarchy: hierarchy, gitHost: gitHost, logger: logger}
}

// EnsureOrganizationInput describes one Organization to reconcile.
type EnsureOrganizationInput struct {
	Path             string
	OrganizationType store.OrganizationType
	CreatedBy        string
}

type EnsureOrganizationOutput struct {
	OrganizationID string
	GroupID        int64
	NamespacePath  string
	WebURL         string
}

// EnsureOrganizationGroup finds or creates the Organization row and its
// backing remote group (spec §4.7 step 1).
func (a *HierarchyActivities) EnsureOrganizationGroup(ctx context.Context, in EnsureOrganizationInput) (EnsureOrganizationOutput, error) {
	path, err := types.NewLabel(in.Path)
	if err != nil {
		return EnsureOrganizationOutput{}, apperrors.Validation("invalid organization path", err)
	}
	org, err := a.hierarchy.FindOrCreateOrganization(ctx, path, in.OrganizationType, in.CreatedBy)
	if err != nil {
		return EnsureOrganizationOutput{}, err
	}

	var info types.GitlabGroupInfo
	_ = org.Properties.Decode("gitlab", &info)
	if info.GroupID == 0 {
		group, err := a.gitHost.GetGroupByPath(ctx, path.String())
		if apperrors.Is(err, apperrors.KindNotFound) {
			group, err = a.gitHost.CreateGroup(ctx, path.String(), path.String(), 0)
		}
		if err != nil {
			return EnsureOrganizationOutput{}, err
		}
		info = types.GitlabGroupInfo{GroupID: group.ID, NamespacePath: group.FullPath, WebURL: group.WebURL}
		if org.Properties == nil {
			org.Properties = types.Properties{}
		}
		if err := org.Properties.Set("gitlab", info); err != nil {
			return EnsureOrganizationOutput{}, apperrors.Internal("encoding gitlab group info", err)
		}
		if err := a.hierarchy.UpdateOrganizationProperties(ctx, org.ID, org.Properties); err != nil {
			return EnsureOrganizationOutput{}, err
		}
	}

	return EnsureOrganizationOutput{OrganizationID: org.ID, GroupID: info.GroupID, NamespacePath: info.NamespacePath, WebURL: info.WebURL}, nil
}

// EnsureCourseFamilyInput describes one CourseFamily to reconcile, nested
// under its Organization's remote group.
type EnsureCourseFamilyInput struct {
	OrganizationID      string
	Path                string
	ParentGroupID       int64
	CreatedBy           string
}

type EnsureCourseFamilyOutput struct {
	CourseFamilyID string
	GroupID        int64
	NamespacePath  string
	WebURL         string
}

// EnsureCourseFamilyGroup finds or creates the CourseFamily row and its
// backing remote subgroup (spec §4.7 step 1).
func (a *HierarchyActivities) EnsureCourseFamilyGroup(ctx context.Context, in EnsureCourseFamilyInput) (EnsureCourseFamilyOutput, error) {
	path, err := types.NewLabel(in.Path)
	if err != nil {
		return EnsureCourseFamilyOutput{}, apperrors.Validation("invalid course family path", err)
	}
	fam, err := a.hierarchy.FindOrCreateCourseFamily(ctx, in.OrganizationID, path, in.CreatedBy)
	if err != nil {
		return EnsureCourseFamilyOutput{}, err
	}

	var info types.GitlabGroupInfo
	_ = fam.Properties.Decode("gitlab", &info)
	if info.GroupID == 0 {
		last := path.Segments()[len(path.Segments())-1]
		group, err := a.gitHost.GetGroupByPath(ctx, path.String())
		if apperrors.Is(err, apperrors.KindNotFound) {
			group, err = a.gitHost.CreateGroup(ctx, last, last, in.ParentGroupID)
		}
		if err != nil {
			return EnsureCourseFamilyOutput{}, err
		}
		info = types.GitlabGroupInfo{GroupID: group.ID, NamespacePath: group.FullPath, WebURL: group.WebURL}
		if fam.Properties == nil {
			fam.Properties = types.Properties{}
		}
		if err := fam.Properties.Set("gitlab", info); err != nil {
			return EnsureCourseFamilyOutput{}, apperrors.Internal("encoding gitlab group info", err)
		}
		if err := a.hierarchy.UpdateOrganizationProperties(ctx, fam.ID, fam.Properties); err != nil {
			return EnsureCourseFamilyOutput{}, err
		}
	}

	return EnsureCourseFamilyOutput{CourseFamilyID: fam.ID, GroupID: info.GroupID, NamespacePath: info.NamespacePath, WebURL: info.WebURL}, nil
}

// EnsureCourseInput describes one Course to reconcile along with the six
// per-course projects spec §4.7 step 2 requires.
type EnsureCourseInput struct {
	CourseFamilyID string
	OrganizationID string
	Path           string
	ParentGroupID  int64
	CreatedBy      string
}

type EnsureCourseOutput struct {
	CourseID string
	Projects types.GitlabCourseProjects
}

// EnsureCourseAndProjects finds or creates the Course row, a "students"
// subgroup for per-student forks, and the six standard per-course projects
// (spec §4.7 step 2): tests, student-template, reference, examples,
// documents, assignments — each created unprotected on its default branch.
func (a *HierarchyActivities) EnsureCourseAndProjects(ctx context.Context, in EnsureCourseInput) (EnsureCourseOutput, error) {
	path, err := types.NewLabel(in.Path)
	if err != nil {
		return EnsureCourseOutput{}, apperrors.Validation("invalid course path", err)
	}
	course, err := a.hierarchy.FindOrCreateCourse(ctx, in.CourseFamilyID, in.OrganizationID, path, in.CreatedBy)
	if err != nil {
		return EnsureCourseOutput{}, err
	}

	var projects types.GitlabCourseProjects
	_ = course.Properties.Decode("gitlab", &projects)
	if projects.StudentTemplateID == 0 {
		courseSlug := path.Segments()[len(path.Segments())-1]

		studentsGroup, err := a.gitHost.GetGroupByPath(ctx, path.String()+"-students")
		if apperrors.Is(err, apperrors.KindNotFound) {
			studentsGroup, err = a.gitHost.CreateGroup(ctx, courseSlug+"-students", courseSlug+"-students", in.ParentGroupID)
		}
		if err != nil {
			return EnsureCourseOutput{}, err
		}

		projectSpecs := []struct {
			name string
			out  *int64
		}{
			{"tests", &projects.TestsProjectID},
			{"student-template", &projects.StudentTemplateID},
			{"reference", &projects.ReferenceProjectID},
			{"examples", &projects.ExamplesProjectID},
			{"documents", &projects.DocumentsProjectID},
			{"assignments", &projects.AssignmentsProjectID},
		}
		for _, spec := range projectSpecs {
			proj, err := a.gitHost.GetProjectByPath(ctx, path.String()+"/"+spec.name)
			if apperrors.Is(err, apperrors.KindNotFound) {
				proj, err = a.gitHost.CreateProject(ctx, spec.name, spec.name, in.ParentGroupID)
			}
			if err != nil {
				return EnsureCourseOutput{}, err
			}
			*spec.out = proj.ID
			if spec.name == "student-template" {
				projects.StudentTemplateURL = proj.WebURL
			}
			if spec.name == "assignments" {
				projects.AssignmentsURL = proj.WebURL
			}
		}
		projects.StudentsGroupID = studentsGroup.ID

		if course.Properties == nil {
			course.Properties = types.Properties{}
		}
		if err := course.Properties.Set("gitlab", projects); err != nil {
			return EnsureCourseOutput{}, apperrors.Internal("encoding gitlab course projects", err)
		}
		if err := a.hierarchy.UpdateCourseProperties(ctx, course.ID, course.Properties); err != nil {
			return EnsureCourseOutput{}, err
		}
	}

	return EnsureCourseOutput{CourseID: course.ID, Projects: projects}, nil
}

// ContentTypeSpec is one CourseContentType to reconcile (spec §4.7 step 3).
type ContentTypeSpec struct {
	Slug        string
	Title       string
	Description string
	Kind        store.CourseContentKind
	Color       string
}

type EnsureContentTypesInput struct {
	CourseID  string
	Types     []ContentTypeSpec
	CreatedBy string
}

// EnsureContentTypes creates any CourseContentType rows from the deployment
// configuration that don't already exist for the course.
func (a *HierarchyActivities) EnsureContentTypes(ctx context.Context, in EnsureContentTypesInput) error {
	for _, t := range in.Types {
		_, err := a.hierarchy.FindOrCreateCourseContentType(ctx, store.CourseContentType{
			CourseID:          in.CourseID,
			Slug:              t.Slug,
			Title:             t.Title,
			Description:       t.Description,
			CourseContentKind: t.Kind,
			Color:             t.Color,
		}, in.CreatedBy)
		if err != nil {
			return err
		}
	}
	return nil
}

type EnsureCourseRolesInput struct {
	CreatedBy string
}

// EnsureCourseRoles creates the built-in course-role defaults if missing
// (spec §4.7 step 4), matching identity.DefaultCourseRoleHierarchy's keys.
func (a *HierarchyActivities) EnsureCourseRoles(ctx context.Context, in EnsureCourseRolesInput) error {
	for _, id := range []string{"_owner", "_maintainer", "_lecturer", "_tutor", "_student"} {
		if _, err := a.hierarchy.FindOrCreateCourseRole(ctx, id, true, in.CreatedBy); err != nil {
			return err
		}
	}
	return nil
}

// UserSpec describes one user from the deployment configuration to
// reconcile into a User, Account, and CourseMember (spec §4.7 step 5).
type UserSpec struct {
	Provider          string
	ProviderAccountID string
	CourseRoleID      string
	CourseGroupTitle  string // non-empty for students; selects/creates their group
}

type EnsureMembershipInput struct {
	CourseID  string
	User      UserSpec
	CreatedBy string
}

type EnsureMembershipOutput struct {
	UserID         string
	CourseMemberID string
}

// EnsureMembership reconciles one deployment-config user into a User,
// Account, CourseGroup (if applicable), and CourseMember.
func (a *HierarchyActivities) EnsureMembership(ctx context.Context, in EnsureMembershipInput) (EnsureMembershipOutput, error) {
	user, _, err := a.hierarchy.FindOrCreateUserByProviderAccount(ctx, in.User.Provider, in.User.ProviderAccountID, in.CreatedBy)
	if err != nil {
		return EnsureMembershipOutput{}, err
	}

	var groupID string
	if in.User.CourseGroupTitle != "" {
		group, err := a.hierarchy.FindOrCreateCourseGroup(ctx, in.CourseID, in.User.CourseGroupTitle, in.CreatedBy)
		if err != nil {
			return EnsureMembershipOutput{}, err
		}
		groupID = group.ID
	}

	member, err := a.hierarchy.FindOrCreateCourseMember(ctx, store.CourseMember{
		UserID:        user.ID,
		CourseID:      in.CourseID,
		CourseGroupID: groupID,
		CourseRoleID:  in.User.CourseRoleID,
	}, in.CreatedBy)
	if err != nil {
		return EnsureMembershipOutput{}, err
	}

	return EnsureMembershipOutput{UserID: user.ID, CourseMemberID: member.ID}, nil
}
