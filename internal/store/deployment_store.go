package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
)

// DeploymentStore persists CourseContentDeployment and its append-only
// DeploymentHistory (spec §3, §4.6). Every transition is applied inside a
// transaction so the deployment row update and its history row are atomic.
type DeploymentStore struct {
	pool *pgxpool.Pool
}

func NewDeploymentStore(pool *pgxpool.Pool) *DeploymentStore {
	return &DeploymentStore{pool: pool}
}

// GetByContentID fetches the deployment row for a CourseContent, if any.
func (s *DeploymentStore) GetByContentID(ctx context.Context, contentID string) (CourseContentDeployment, error) {
	var d CourseContentDeployment
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, course_content_id, COALESCE(example_version_id,''), COALESCE(example_identifier,''),
			COALESCE(version_tag,''), COALESCE(version_identifier,''), deployment_status, COALESCE(deployment_path,''),
			COALESCE(deployment_message,''), assigned_at, deployed_at, last_attempt_at, COALESCE(workflow_id,''),
			deployment_metadata, created_at, updated_at, created_by, updated_by
		FROM course_content_deployment WHERE course_content_id = $1
	`, contentID)
	if err := row.Scan(&d.ID, &d.Version, &d.CourseContentID, &d.ExampleVersionID, &d.ExampleIdentifier,
		&d.VersionTag, &d.VersionIdentifier, &d.DeploymentStatus, &d.DeploymentPath, &d.DeploymentMessage,
		&d.AssignedAt, &d.DeployedAt, &d.LastAttemptAt, &d.WorkflowID, &d.DeploymentMetadata,
		&d.CreatedAt, &d.UpdatedAt, &d.CreatedBy, &d.UpdatedBy); err != nil {
		return CourseContentDeployment{}, mapError("getting deployment for content "+contentID, err)
	}
	return d, nil
}

// ListSelectable returns every deployment of courseID selectable for release
// under the default rule (pending/failed, plus deployed when
// forceRedeploy) — callers narrow further for explicit/parent selections.
func (s *DeploymentStore) ListSelectable(ctx context.Context, courseID string, forceRedeploy bool) ([]CourseContentDeployment, error) {
	statuses := []string{string(DeploymentStatusPending), string(DeploymentStatusFailed)}
	if forceRedeploy {
		statuses = append(statuses, string(DeploymentStatusDeployed))
	}
	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.version, d.course_content_id, COALESCE(d.example_version_id,''), COALESCE(d.example_identifier,''),
			COALESCE(d.version_tag,''), COALESCE(d.version_identifier,''), d.deployment_status, COALESCE(d.deployment_path,''),
			COALESCE(d.deployment_message,''), d.assigned_at, d.deployed_at, d.last_attempt_at, COALESCE(d.workflow_id,''),
			d.deployment_metadata, d.created_at, d.updated_at, d.created_by, d.updated_by
		FROM course_content_deployment d
		JOIN course_content cc ON cc.id = d.course_content_id
		WHERE cc.course_id = $1 AND d.deployment_status = ANY($2)
	`, courseID, statuses)
	if err != nil {
		return nil, mapError("listing selectable deployments for "+courseID, err)
	}
	defer rows.Close()

	var out []CourseContentDeployment
	for rows.Next() {
		var d CourseContentDeployment
		if err := rows.Scan(&d.ID, &d.Version, &d.CourseContentID, &d.ExampleVersionID, &d.ExampleIdentifier,
			&d.VersionTag, &d.VersionIdentifier, &d.DeploymentStatus, &d.DeploymentPath, &d.DeploymentMessage,
			&d.AssignedAt, &d.DeployedAt, &d.LastAttemptAt, &d.WorkflowID, &d.DeploymentMetadata,
			&d.CreatedAt, &d.UpdatedAt, &d.CreatedBy, &d.UpdatedBy); err != nil {
			return nil, mapError("scanning deployment row", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterating deployment rows", err)
	}
	return out, nil
}

// ApplyTransition persists a deployment.Transition atomically: it updates
// (or inserts, for a brand-new Assign) the deployment row keyed by version,
// and appends the history row. A version mismatch on update is reported as
// a Conflict (spec §4.3 "Concurrency").
func (s *DeploymentStore) ApplyTransition(ctx context.Context, previousVersion int, d CourseContentDeployment, h DeploymentHistory) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.Internal("beginning deployment transaction", err)
	}
	defer tx.Rollback(ctx)

	if previousVersion == 0 {
		if err := insertDeployment(ctx, tx, d); err != nil {
			return err
		}
	} else {
		tag, err := tx.Exec(ctx, `
			UPDATE course_content_deployment SET
				example_version_id=$1, example_identifier=$2, version_tag=$3, version_identifier=$4,
				deployment_status=$5, deployment_path=$6, deployment_message=$7, deployed_at=$8,
				last_attempt_at=$9, workflow_id=$10, deployment_metadata=$11, updated_at=now(), version=$12
			WHERE id=$13 AND version=$14
		`, nullableString(d.ExampleVersionID), nullableString(d.ExampleIdentifier), nullableString(d.VersionTag),
			nullableString(d.VersionIdentifier), d.DeploymentStatus, nullableString(d.DeploymentPath),
			nullableString(d.DeploymentMessage), d.DeployedAt, d.LastAttemptAt, nullableString(d.WorkflowID),
			d.DeploymentMetadata, d.Version, d.ID, previousVersion)
		if err != nil {
			return mapError("updating deployment "+d.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.Conflict("deployment "+d.ID+" was modified concurrently", nil)
		}
	}

	h.ID = uuid.NewString()
	if _, err := tx.Exec(ctx, `
		INSERT INTO deployment_history (id, deployment_id, action, action_details, example_version_id,
			previous_example_version_id, example_identifier, version_tag, workflow_id, meta, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, h.ID, h.DeploymentID, h.Action, h.ActionDetails, nullableString(h.ExampleVersionID),
		nullableString(h.PreviousExampleVersionID), nullableString(h.ExampleIdentifier), nullableString(h.VersionTag),
		nullableString(h.WorkflowID), h.Meta, h.CreatedAt); err != nil {
		return mapError("inserting deployment history", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.Internal("committing deployment transaction", err)
	}
	return nil
}

func insertDeployment(ctx context.Context, tx pgx.Tx, d CourseContentDeployment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO course_content_deployment (id, version, course_content_id, example_version_id, example_identifier,
			version_tag, deployment_status, assigned_at, workflow_id, deployment_metadata, created_at, updated_at,
			created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now(),$11,$12)
	`, d.ID, 1, d.CourseContentID, nullableString(d.ExampleVersionID), nullableString(d.ExampleIdentifier),
		nullableString(d.VersionTag), d.DeploymentStatus, d.AssignedAt, nullableString(d.WorkflowID),
		d.DeploymentMetadata, d.CreatedBy, d.UpdatedBy)
	if err != nil {
		return mapError("inserting deployment "+d.ID, err)
	}
	return nil
}

// HistoryFor returns every DeploymentHistory row for a deployment, oldest
// first.
func (s *DeploymentStore) HistoryFor(ctx context.Context, deploymentID string) ([]DeploymentHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, deployment_id, action, action_details, COALESCE(example_version_id,''),
			COALESCE(previous_example_version_id,''), COALESCE(example_identifier,''), COALESCE(version_tag,''),
			COALESCE(workflow_id,''), meta, created_at
		FROM deployment_history WHERE deployment_id = $1 ORDER BY created_at ASC
	`, deploymentID)
	if err != nil {
		return nil, mapError("listing deployment history for "+deploymentID, err)
	}
	defer rows.Close()

	var out []DeploymentHistory
	for rows.Next() {
		var h DeploymentHistory
		if err := rows.Scan(&h.ID, &h.DeploymentID, &h.Action, &h.ActionDetails, &h.ExampleVersionID,
			&h.PreviousExampleVersionID, &h.ExampleIdentifier, &h.VersionTag, &h.WorkflowID, &h.Meta, &h.CreatedAt); err != nil {
			return nil, mapError("scanning deployment history row", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterating deployment history rows", err)
	}
	return out, nil
}
