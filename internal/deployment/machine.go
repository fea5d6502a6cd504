// Package deployment implements the per-content deployment record lifecycle
// and its append-only history (spec §4.6): a pure state machine over
// store.CourseContentDeployment, independent of how rows are persisted.
package deployment

import (
	"time"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/drewpayment/ctutor-controlplane/internal/store"
	"github.com/drewpayment/ctutor-controlplane/pkg/types"
)

const maxDeploymentMessageLen = 500

// Transition is one state-machine move, bundling the updated deployment row
// with the history entry that must be appended alongside it.
type Transition struct {
	Deployment store.CourseContentDeployment
	History    store.DeploymentHistory
}

func truncateMessage(msg string) string {
	if len(msg) <= maxDeploymentMessageLen {
		return msg
	}
	return msg[:maxDeploymentMessageLen]
}

// Assign creates the initial `pending` deployment record for a content that
// previously had none.
func Assign(contentID, workflowID, exampleVersionID, exampleIdentifier, versionTag string, now time.Time) Transition {
	d := store.CourseContentDeployment{
		Base:              store.Base{ID: newID()},
		CourseContentID:   contentID,
		ExampleVersionID:  exampleVersionID,
		ExampleIdentifier: exampleIdentifier,
		VersionTag:        versionTag,
		DeploymentStatus:  store.DeploymentStatusPending,
		AssignedAt:        now,
		WorkflowID:        workflowID,
	}
	h := store.DeploymentHistory{
		DeploymentID:      d.ID,
		Action:            store.DeploymentActionAssigned,
		ExampleVersionID:  exampleVersionID,
		ExampleIdentifier: exampleIdentifier,
		VersionTag:        versionTag,
		WorkflowID:        workflowID,
		CreatedAt:         now,
	}
	return Transition{Deployment: d, History: h}
}

// Reassign moves any existing deployment back to `pending` when a new
// example version is assigned to the content it belongs to (spec §4.6:
// `* --reassign--> pending`).
func Reassign(d store.CourseContentDeployment, workflowID, exampleVersionID, exampleIdentifier, versionTag string, now time.Time) Transition {
	previous := d.ExampleVersionID
	d.ExampleVersionID = exampleVersionID
	d.ExampleIdentifier = exampleIdentifier
	d.VersionTag = versionTag
	d.DeploymentStatus = store.DeploymentStatusPending
	d.WorkflowID = workflowID
	d.Version++
	h := store.DeploymentHistory{
		DeploymentID:             d.ID,
		Action:                   store.DeploymentActionReassigned,
		ExampleVersionID:         exampleVersionID,
		PreviousExampleVersionID: previous,
		ExampleIdentifier:        exampleIdentifier,
		VersionTag:               versionTag,
		WorkflowID:               workflowID,
		CreatedAt:                now,
	}
	return Transition{Deployment: d, History: h}
}

// BeginDeploying moves pending/failed (or deployed, on force-redeploy) into
// `deploying`, recording force_redeploy in the history meta when applicable.
func BeginDeploying(d store.CourseContentDeployment, workflowID string, forceRedeploy bool, now time.Time) (Transition, error) {
	switch d.DeploymentStatus {
	case store.DeploymentStatusPending, store.DeploymentStatusFailed:
	case store.DeploymentStatusDeployed:
		if !forceRedeploy {
			return Transition{}, apperrors.Conflict("deployment already deployed; force_redeploy required", nil)
		}
	default:
		return Transition{}, apperrors.Conflict("cannot begin deploying from status "+string(d.DeploymentStatus), nil)
	}
	d.DeploymentStatus = store.DeploymentStatusDeploying
	d.WorkflowID = workflowID
	d.LastAttemptAt = &now
	d.Version++

	meta := types.Properties{}
	if forceRedeploy {
		meta["force_redeploy"] = true
	}
	h := store.DeploymentHistory{
		DeploymentID:      d.ID,
		Action:            store.DeploymentActionDeploying,
		ExampleVersionID:  d.ExampleVersionID,
		ExampleIdentifier: d.ExampleIdentifier,
		VersionTag:        d.VersionTag,
		WorkflowID:        workflowID,
		Meta:              meta,
		CreatedAt:         now,
	}
	return Transition{Deployment: d, History: h}, nil
}

// Deployed moves a `deploying` record to `deployed`, stamping deployed_at,
// deployment_path, and version_identifier (spec §4.6).
func Deployed(d store.CourseContentDeployment, deploymentPath, commitSHA string, now time.Time) (Transition, error) {
	if d.DeploymentStatus != store.DeploymentStatusDeploying {
		return Transition{}, apperrors.Conflict("cannot mark deployed from status "+string(d.DeploymentStatus), nil)
	}
	d.DeploymentStatus = store.DeploymentStatusDeployed
	d.DeployedAt = &now
	d.DeploymentPath = deploymentPath
	d.VersionIdentifier = commitSHA
	d.Version++

	h := store.DeploymentHistory{
		DeploymentID:      d.ID,
		Action:            store.DeploymentActionDeployed,
		ExampleVersionID:  d.ExampleVersionID,
		ExampleIdentifier: d.ExampleIdentifier,
		VersionTag:        d.VersionTag,
		WorkflowID:        d.WorkflowID,
		CreatedAt:         now,
	}
	return Transition{Deployment: d, History: h}, nil
}

// Failed moves a `deploying` record to `failed`, truncating the message.
func Failed(d store.CourseContentDeployment, message string, now time.Time) Transition {
	d.DeploymentStatus = store.DeploymentStatusFailed
	d.DeploymentMessage = truncateMessage(message)
	d.Version++

	h := store.DeploymentHistory{
		DeploymentID:      d.ID,
		Action:            store.DeploymentActionFailed,
		ActionDetails:     d.DeploymentMessage,
		ExampleVersionID:  d.ExampleVersionID,
		ExampleIdentifier: d.ExampleIdentifier,
		VersionTag:        d.VersionTag,
		WorkflowID:        d.WorkflowID,
		CreatedAt:         now,
	}
	return Transition{Deployment: d, History: h}
}

// Unassign moves a deployed record to `unassigned` when its example is
// removed from the content.
func Unassign(d store.CourseContentDeployment, now time.Time) (Transition, error) {
	if d.DeploymentStatus != store.DeploymentStatusDeployed {
		return Transition{}, apperrors.Conflict("cannot unassign from status "+string(d.DeploymentStatus), nil)
	}
	d.DeploymentStatus = store.DeploymentStatusUnassigned
	d.Version++

	h := store.DeploymentHistory{
		DeploymentID:      d.ID,
		Action:            store.DeploymentActionUnassigned,
		ExampleVersionID:  d.ExampleVersionID,
		ExampleIdentifier: d.ExampleIdentifier,
		VersionTag:        d.VersionTag,
		WorkflowID:        d.WorkflowID,
		CreatedAt:         now,
	}
	return Transition{Deployment: d, History: h}, nil
}

// SelectableForRelease reports whether d belongs in the default selection
// set for a student-template run with the given force_redeploy flag (spec
// §4.8 "Selection semantics": defaults to pending/failed, plus deployed when
// force_redeploy).
func SelectableForRelease(d store.CourseContentDeployment, forceRedeploy bool) bool {
	switch d.DeploymentStatus {
	case store.DeploymentStatusPending, store.DeploymentStatusFailed:
		return true
	case store.DeploymentStatusDeployed:
		return forceRedeploy
	default:
		return false
	}
}
