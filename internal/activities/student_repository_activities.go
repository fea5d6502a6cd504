package activities

import (
	"context"
	"log/slog"
	"strings"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/drewpayment/ctutor-controlplane/internal/clients"
	"github.com/drewpayment/ctutor-controlplane/internal/store"
	"github.com/drewpayment/ctutor-controlplane/pkg/types"
)

// gitlabMaintainerAccessLevel is GitLab's numeric access level for
// Maintainer, the role a student needs to push to their own fork.
const gitlabMaintainerAccessLevel = 40

// StudentRepositoryActivities backs the Student Repository Workflow (spec
// §4.9): forking the student-template project per student/team, relaxing
// branch protection, granting access, and persisting the resulting remote
// identity.
type StudentRepositoryActivities struct {
	hierarchy        *store.HierarchyStore
	submissionGroups *store.SubmissionGroupStore
	gitHost          *clients.GitHostClient
	logger           *slog.Logger
}

func NewStudentRepositoryActivities(hierarchy *store.HierarchyStore, submissionGroups *store.SubmissionGroupStore, gitHost *clients.GitHostClient, logger *slog.Logger) *StudentRepositoryActivities {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudentRepositoryActivities{hierarchy: hierarchy, submissionGroups: submissionGroups, gitHost: gitHost, logger: logger}
}

// ForkTargetInput describes the repository to fork for one member or team.
type ForkTargetInput struct {
	CourseMemberID        string
	StudentTemplateProjectID int64
	StudentsGroupID       int64
	TargetSlug            string // lowercase, hyphenated username or team name
}

type ForkTargetOutput struct {
	AlreadyForked bool
	Project       clients.GitHostProject
}

// FindExistingFork looks up the target project by path, satisfying the
// idempotency check of spec §4.9 step 1.
func (a *StudentRepositoryActivities) FindExistingFork(ctx context.Context, in ForkTargetInput) (ForkTargetOutput, error) {
	proj, err := a.gitHost.GetProjectByPath(ctx, in.TargetSlug)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return ForkTargetOutput{AlreadyForked: false}, nil
	}
	if err != nil {
		return ForkTargetOutput{}, err
	}
	return ForkTargetOutput{AlreadyForked: true, Project: proj}, nil
}

// RequestFork requests an asynchronous fork of the student-template project
// into the students group (spec §4.9 step 2).
func (a *StudentRepositoryActivities) RequestFork(ctx context.Context, in ForkTargetInput) (ForkTargetOutput, error) {
	proj, err := a.gitHost.ForkProject(ctx, in.StudentTemplateProjectID, in.StudentsGroupID, in.TargetSlug, in.TargetSlug)
	if err != nil {
		return ForkTargetOutput{}, apperrors.Upstream("requesting fork for "+in.TargetSlug, err)
	}
	return ForkTargetOutput{Project: proj}, nil
}

type PollForkReadyInput struct {
	TargetSlug string
}

type PollForkReadyOutput struct {
	Ready   bool
	Project clients.GitHostProject
}

// PollForkReady checks once whether the fork is readable yet. The workflow
// calls this repeatedly with timers between attempts (spec §4.9 step 2:
// "poll until readable"); the activity itself does not sleep so retries
// remain visible and cancellable.
func (a *StudentRepositoryActivities) PollForkReady(ctx context.Context, in PollForkReadyInput) (PollForkReadyOutput, error) {
	proj, err := a.gitHost.GetProjectByPath(ctx, in.TargetSlug)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return PollForkReadyOutput{Ready: false}, nil
	}
	if err != nil {
		return PollForkReadyOutput{}, err
	}
	return PollForkReadyOutput{Ready: true, Project: proj}, nil
}

type UnprotectBranchesInput struct {
	ProjectID int64
}

// UnprotectBranches removes protection from `main` and `master` so students
// may push directly (spec §4.9 step 3).
func (a *StudentRepositoryActivities) UnprotectBranches(ctx context.Context, in UnprotectBranchesInput) error {
	for _, branch := range []string{"main", "master"} {
		if err := a.gitHost.UnprotectBranch(ctx, in.ProjectID, branch); err != nil {
			return err
		}
	}
	return nil
}

type GrantAccessInput struct {
	ProjectID      int64
	CourseMemberID string
}

type GrantAccessOutput struct {
	RemoteUserID int64
}

// GrantAccess adds the student as a Maintainer on their fork, resolving
// their remote user id by email when it isn't already cached on the
// CourseMember (spec §4.9 step 4).
func (a *StudentRepositoryActivities) GrantAccess(ctx context.Context, in GrantAccessInput) (GrantAccessOutput, error) {
	member, err := a.hierarchy.GetCourseMember(ctx, in.CourseMemberID)
	if err != nil {
		return GrantAccessOutput{}, err
	}

	var cached struct {
		RemoteUserID int64 `json:"remote_user_id"`
	}
	_ = member.Properties.Decode("gitlab_user", &cached)

	remoteUserID := cached.RemoteUserID
	if remoteUserID == 0 {
		user, err := a.hierarchy.GetUser(ctx, member.UserID)
		if err != nil {
			return GrantAccessOutput{}, err
		}
		if user.Email == "" {
			return GrantAccessOutput{}, apperrors.Validation("course member has no email to resolve a remote user", nil)
		}
		remoteUserID, err = a.gitHost.FindUserByEmail(ctx, user.Email)
		if err != nil {
			return GrantAccessOutput{}, err
		}
		cached.RemoteUserID = remoteUserID
		if member.Properties == nil {
			member.Properties = types.Properties{}
		}
		if err := member.Properties.Set("gitlab_user", cached); err != nil {
			return GrantAccessOutput{}, apperrors.Internal("encoding cached remote user id", err)
		}
		if err := a.hierarchy.UpdateCourseMemberProperties(ctx, member.ID, member.Properties); err != nil {
			return GrantAccessOutput{}, err
		}
	}

	if err := a.gitHost.AddMember(ctx, in.ProjectID, remoteUserID, gitlabMaintainerAccessLevel); err != nil {
		return GrantAccessOutput{}, err
	}
	return GrantAccessOutput{RemoteUserID: remoteUserID}, nil
}

type PersistRepositoryInput struct {
	CourseMemberID string
	Project         clients.GitHostProject
}

// PersistRepository writes the forked repository's remote identity onto the
// CourseMember and every CourseSubmissionGroup it belongs to (spec §4.9
// step 5).
func (a *StudentRepositoryActivities) PersistRepository(ctx context.Context, in PersistRepositoryInput) error {
	info := types.GitlabRepoInfo{
		FullPath:    in.Project.PathWithNamespace,
		WebURL:      in.Project.WebURL,
		GroupID:     in.Project.NamespaceID,
		NamespaceID: in.Project.NamespaceID,
	}

	member, err := a.hierarchy.GetCourseMember(ctx, in.CourseMemberID)
	if err != nil {
		return err
	}
	if member.Properties == nil {
		member.Properties = types.Properties{}
	}
	if err := member.Properties.Set("gitlab_repository", info); err != nil {
		return apperrors.Internal("encoding gitlab repository info", err)
	}
	if err := a.hierarchy.UpdateCourseMemberProperties(ctx, member.ID, member.Properties); err != nil {
		return err
	}

	groups, err := a.submissionGroups.ListForMember(ctx, in.CourseMemberID)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.Properties == nil {
			g.Properties = types.Properties{}
		}
		if err := g.Properties.Set("gitlab", info); err != nil {
			return apperrors.Internal("encoding gitlab info onto submission group", err)
		}
		if err := a.submissionGroups.UpdateProperties(ctx, g.ID, g.Properties); err != nil {
			return err
		}
	}
	return nil
}

// SlugifyUsername derives a deterministic path segment from a raw username
// or team name: lowercase, non-alphanumerics collapsed to single hyphens
// (spec §4.9: "lowercase, hyphens").
func SlugifyUsername(raw string) string {
	var b strings.Builder
	prevHyphen := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
