// Package store defines the typed entity model (spec §3) and a Postgres-backed
// implementation of CRUD, list filtering, and path-indexed traversal over it.
package store

import (
	"time"

	"github.com/drewpayment/ctutor-controlplane/pkg/types"
)

// Base carries the fields every entity has (spec §3).
type Base struct {
	ID         string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	CreatedBy  string
	UpdatedBy  string
	Properties types.Properties
}

type OrganizationType string

const (
	OrganizationTypeUser         OrganizationType = "user"
	OrganizationTypeCommunity    OrganizationType = "community"
	OrganizationTypeOrganization OrganizationType = "organization"
)

// Organization is a root of the hierarchy.
type Organization struct {
	Base
	Path             types.Label
	OrganizationType OrganizationType
	GitlabConfig     *types.GitlabConfig
}

// CourseFamily belongs to an Organization.
type CourseFamily struct {
	Base
	OrganizationID string
	Path           types.Label
}

// Course belongs to a CourseFamily.
type Course struct {
	Base
	CourseFamilyID string
	OrganizationID string
	Path           types.Label
}

// CourseRole is a built-in or custom role identifier; built-ins start with "_".
type CourseRole struct {
	Base
	Builtin bool
}

// CourseGroup is a section/group a student belongs to within a course.
type CourseGroup struct {
	Base
	CourseID string
	Title    string
}

// CourseMember links a user to a course with a role, unique per (user, course).
type CourseMember struct {
	Base
	UserID         string
	CourseID       string
	CourseGroupID  string
	CourseRoleID   string
}

// CourseSubmissionGroup is the submission unit for one CourseContent: one
// student working alone, or one team, depending on CourseContentType. Its
// properties carry the forked repository's remote identity once C9 runs.
type CourseSubmissionGroup struct {
	Base
	CourseID        string
	CourseContentID string
	MaxGroupSize    int
	MaxSubmissions  int
	MaxTestRuns     int
}

// CourseSubmissionGroupMember links a CourseMember to the submission group
// they (or their team) submit through.
type CourseSubmissionGroupMember struct {
	Base
	CourseID                string
	CourseSubmissionGroupID string
	CourseMemberID           string
}

// CourseContentKind distinguishes submittable assignment-like content from
// non-submittable unit/structure content.
type CourseContentKind string

const (
	CourseContentKindUnit       CourseContentKind = "unit"
	CourseContentKindAssignment CourseContentKind = "assignment"
)

// HasDeployment reports whether content of this kind may carry a deployment
// (spec §3 invariant: "Only submittable CourseContent may have a non-null
// deployment").
func (k CourseContentKind) HasDeployment() bool {
	return k == CourseContentKindAssignment
}

// CourseContentType names one kind of content a course can have (e.g.
// "assignment", "unit"), mapping to a CourseContentKind for submittability.
type CourseContentType struct {
	Base
	CourseID          string
	Slug              string
	Title             string
	Description       string
	CourseContentKind CourseContentKind
	Color             string
}

// CourseContent is a node in a course's content tree.
type CourseContent struct {
	Base
	CourseID              string
	Path                  types.Label
	CourseContentTypeID   string
	CourseContentKind     CourseContentKind
	Position              float64
	MaxGroupSize          int
	MaxSubmissions        int
	MaxTestRuns           int
	ExecutionBackendID    string
	ArchivedAt            *time.Time
}

// ExampleSourceType identifies the backing store of an ExampleRepository.
type ExampleSourceType string

const (
	ExampleSourceGit    ExampleSourceType = "git"
	ExampleSourceMinio  ExampleSourceType = "minio"
	ExampleSourceGitHub ExampleSourceType = "github"
	ExampleSourceS3     ExampleSourceType = "s3"
	ExampleSourceGitLab ExampleSourceType = "gitlab"
)

// ExampleRepository is a source of example content.
type ExampleRepository struct {
	Base
	SourceType        ExampleSourceType
	SourceURL         string
	AccessCredentials string
	OrganizationID    string
}

// Example is a versioned, reusable assignment.
type Example struct {
	Base
	RepositoryID     string
	Directory        string
	Identifier       types.Label
	Title            string
	Subject          string
	Category         string
	Tags             []string
	VersionIdentifier string
}

// ExampleVersion is one stored version of an Example's content.
type ExampleVersion struct {
	Base
	ExampleID     string
	VersionTag    string
	VersionNumber int
	StoragePath   string
	MetaYAML      string
	TestYAML      string
}

// ExampleDependency is a directed edge from one example to one it depends on.
type ExampleDependency struct {
	Base
	ExampleID         string
	DependsID         string
	VersionConstraint string
}

// DeploymentStatus is the CourseContentDeployment.deployment_status state
// machine value (spec §4.6).
type DeploymentStatus string

const (
	DeploymentStatusPending    DeploymentStatus = "pending"
	DeploymentStatusDeploying  DeploymentStatus = "deploying"
	DeploymentStatusDeployed   DeploymentStatus = "deployed"
	DeploymentStatusFailed     DeploymentStatus = "failed"
	DeploymentStatusUnassigned DeploymentStatus = "unassigned"
)

// CourseContentDeployment is the authoritative record of what example version
// is deployed to a submittable CourseContent.
type CourseContentDeployment struct {
	Base
	CourseContentID    string
	ExampleVersionID   string
	ExampleIdentifier  string
	VersionTag         string
	VersionIdentifier  string
	DeploymentStatus   DeploymentStatus
	DeploymentPath     string
	DeploymentMessage  string
	AssignedAt         time.Time
	DeployedAt         *time.Time
	LastAttemptAt      *time.Time
	WorkflowID         string
	DeploymentMetadata types.Properties
}

// DeploymentHistoryAction is one DeploymentHistory.action value.
type DeploymentHistoryAction string

const (
	DeploymentActionAssigned   DeploymentHistoryAction = "assigned"
	DeploymentActionReassigned DeploymentHistoryAction = "reassigned"
	DeploymentActionDeploying  DeploymentHistoryAction = "deploying"
	DeploymentActionDeployed   DeploymentHistoryAction = "deployed"
	DeploymentActionFailed     DeploymentHistoryAction = "failed"
	DeploymentActionUnassigned DeploymentHistoryAction = "unassigned"
	DeploymentActionUpdated    DeploymentHistoryAction = "updated"
)

// DeploymentHistory is one append-only audit row for a deployment transition.
type DeploymentHistory struct {
	ID                       string
	DeploymentID             string
	Action                   DeploymentHistoryAction
	ActionDetails            string
	ExampleVersionID         string
	PreviousExampleVersionID string
	ExampleIdentifier        string
	VersionTag               string
	WorkflowID               string
	Meta                     types.Properties
	CreatedAt                time.Time
}

// Result is a recorded test-execution outcome for a submission.
type Result struct {
	Base
	CourseMemberID        string
	CourseContentID       string
	CourseSubmissionGroupID string
	ExecutionBackendID    string
	TestSystemID          string
	Submit                bool
	ResultScore           float64
	ResultJSON            types.Properties
	VersionIdentifier     string
	Status                string
}

// UserType distinguishes a human user from a service/token account.
type UserType string

const (
	UserTypeHuman UserType = "user"
	UserTypeToken UserType = "token"
)

// User is an identity, human or token.
type User struct {
	Base
	UserType        UserType
	Email           string
	TokenExpiration *time.Time
}

// Account links a User to an external auth provider.
type Account struct {
	Base
	UserID            string
	Provider          string
	Type              string
	ProviderAccountID string
}

// Role is a global (non-course) role.
type Role struct {
	Base
	Builtin bool
}

// RoleClaim is one (claim_type, claim_value) row granting a Role a claim.
type RoleClaim struct {
	Base
	RoleID     string
	ClaimType  string
	ClaimValue string
}

// UserRole links a User to a global Role.
type UserRole struct {
	Base
	UserID string
	RoleID string
}

// ExecutionBackend identifies a test-runner backend (python, matlab, ...).
type ExecutionBackend struct {
	Base
	Slug string
	Type string
}
