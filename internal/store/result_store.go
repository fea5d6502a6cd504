package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/drewpayment/ctutor-controlplane/internal/authz"
)

// ResultStore persists test-execution Results (spec §3, §4.10).
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) Create(ctx context.Context, r Result) (Result, error) {
	r.ID = uuid.NewString()
	r.Version = 1
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO result (id, version, course_member_id, course_content_id, course_submission_group_id,
			execution_backend_id, test_system_id, submit, result_score, result_json, version_identifier, status,
			created_at, updated_at, created_by, updated_by, properties)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, r.ID, r.Version, r.CourseMemberID, r.CourseContentID, nullableString(r.CourseSubmissionGroupID),
		r.ExecutionBackendID, r.TestSystemID, r.Submit, r.ResultScore, r.ResultJSON, r.VersionIdentifier, r.Status,
		r.CreatedAt, r.UpdatedAt, r.CreatedBy, r.UpdatedBy, r.Properties)
	if err != nil {
		return Result{}, mapError("creating result", err)
	}
	return r, nil
}

// UpdateStatus is the Test Execution Workflow's final write: commit the
// backend's outcome onto the pre-created Result row (spec §4.10 step 3).
func (s *ResultStore) UpdateStatus(ctx context.Context, id, status string, score float64, resultJSON map[string]any) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE result SET status = $1, result_score = $2, result_json = $3, updated_at = now(), version = version + 1
		WHERE id = $4
	`, status, score, resultJSON, id)
	if err != nil {
		return mapError("updating result "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("result "+id, nil)
	}
	return nil
}

// ListFiltered applies an authz.Decision (tutor: course-wide; student:
// own-only) when listing results (spec §4.2 "Result" handler family).
func (s *ResultStore) ListFiltered(ctx context.Context, d authz.Decision, courseMemberID string) ([]Result, error) {
	var query string
	var args []any
	switch {
	case d.Filter.Unrestricted:
		query = `SELECT id, version, course_member_id, course_content_id, COALESCE(course_submission_group_id,''),
			execution_backend_id, test_system_id, submit, result_score, result_json, version_identifier, status,
			created_at, updated_at, created_by, updated_by, properties FROM result`
	case len(d.Filter.CourseIDIn) > 0:
		query = `SELECT r.id, r.version, r.course_member_id, r.course_content_id, COALESCE(r.course_submission_group_id,''),
			r.execution_backend_id, r.test_system_id, r.submit, r.result_score, r.result_json, r.version_identifier, r.status,
			r.created_at, r.updated_at, r.created_by, r.updated_by, r.properties
			FROM result r
			JOIN course_content cc ON cc.id = r.course_content_id
			WHERE cc.course_id = ANY($1) OR r.course_member_id = $2`
		args = []any{d.Filter.CourseIDIn, courseMemberID}
	default:
		query = `SELECT id, version, course_member_id, course_content_id, COALESCE(course_submission_group_id,''),
			execution_backend_id, test_system_id, submit, result_score, result_json, version_identifier, status,
			created_at, updated_at, created_by, updated_by, properties FROM result WHERE course_member_id = $1`
		args = []any{courseMemberID}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("listing results", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Version, &r.CourseMemberID, &r.CourseContentID, &r.CourseSubmissionGroupID,
			&r.ExecutionBackendID, &r.TestSystemID, &r.Submit, &r.ResultScore, &r.ResultJSON, &r.VersionIdentifier,
			&r.Status, &r.CreatedAt, &r.UpdatedAt, &r.CreatedBy, &r.UpdatedBy, &r.Properties); err != nil {
			return nil, mapError("scanning result row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterating result rows", err)
	}
	return out, nil
}
