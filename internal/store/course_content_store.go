package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/drewpayment/ctutor-controlplane/internal/authz"
	"github.com/drewpayment/ctutor-controlplane/pkg/types"
)

// CourseContentStore provides CRUD and tree traversal for CourseContent
// (spec §3, §4.3).
type CourseContentStore struct {
	pool *pgxpool.Pool
}

func NewCourseContentStore(pool *pgxpool.Pool) *CourseContentStore {
	return &CourseContentStore{pool: pool}
}

func (s *CourseContentStore) Create(ctx context.Context, cc CourseContent) (CourseContent, error) {
	if err := cc.Path.Validate(); err != nil {
		return CourseContent{}, apperrors.Validation("invalid course content path", err)
	}
	cc.ID = uuid.NewString()
	cc.Version = 1
	now := time.Now()
	cc.CreatedAt, cc.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO course_content (id, version, course_id, path, course_content_type_id, course_content_kind,
			position, max_group_size, max_submissions, max_test_runs, execution_backend_id, properties,
			created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, cc.ID, cc.Version, cc.CourseID, cc.Path.String(), cc.CourseContentTypeID, cc.CourseContentKind,
		cc.Position, cc.MaxGroupSize, cc.MaxSubmissions, cc.MaxTestRuns, nullableString(cc.ExecutionBackendID), cc.Properties,
		cc.CreatedAt, cc.UpdatedAt, cc.CreatedBy, cc.UpdatedBy)
	if err != nil {
		return CourseContent{}, mapError("creating course content", err)
	}
	return cc, nil
}

func (s *CourseContentStore) Get(ctx context.Context, id string) (CourseContent, error) {
	var cc CourseContent
	var path string
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, course_id, path, course_content_type_id, course_content_kind,
			position, max_group_size, max_submissions, max_test_runs, COALESCE(execution_backend_id, ''), properties,
			created_at, updated_at, created_by, updated_by
		FROM course_content WHERE id = $1
	`, id)
	if err := row.Scan(&cc.ID, &cc.Version, &cc.CourseID, &path, &cc.CourseContentTypeID, &cc.CourseContentKind,
		&cc.Position, &cc.MaxGroupSize, &cc.MaxSubmissions, &cc.MaxTestRuns, &cc.ExecutionBackendID, &cc.Properties,
		&cc.CreatedAt, &cc.UpdatedAt, &cc.CreatedBy, &cc.UpdatedBy); err != nil {
		return CourseContent{}, mapError("getting course content "+id, err)
	}
	cc.Path, _ = types.NewLabel(path)
	return cc, nil
}

// ListByCourseFiltered scopes the content tree of courseID to the caller's
// authz.Decision, honoring the course_id-first index (spec §4.3 "Indexes").
func (s *CourseContentStore) ListByCourseFiltered(ctx context.Context, courseID string, d authz.Decision) ([]CourseContent, error) {
	if !d.Filter.Unrestricted {
		permitted := false
		for _, id := range d.Filter.CourseIDIn {
			if id == courseID {
				permitted = true
				break
			}
		}
		if !permitted {
			return nil, nil
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, version, course_id, path, course_content_type_id, course_content_kind,
			position, max_group_size, max_submissions, max_test_runs, COALESCE(execution_backend_id, ''), properties,
			created_at, updated_at, created_by, updated_by
		FROM course_content WHERE course_id = $1 ORDER BY position
	`, courseID)
	if err != nil {
		return nil, mapError("listing course content for "+courseID, err)
	}
	defer rows.Close()

	var out []CourseContent
	for rows.Next() {
		var cc CourseContent
		var path string
		if err := rows.Scan(&cc.ID, &cc.Version, &cc.CourseID, &path, &cc.CourseContentTypeID, &cc.CourseContentKind,
			&cc.Position, &cc.MaxGroupSize, &cc.MaxSubmissions, &cc.MaxTestRuns, &cc.ExecutionBackendID, &cc.Properties,
			&cc.CreatedAt, &cc.UpdatedAt, &cc.CreatedBy, &cc.UpdatedBy); err != nil {
			return nil, mapError("scanning course content row", err)
		}
		cc.Path, _ = types.NewLabel(path)
		out = append(out, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterating course content rows", err)
	}
	return out, nil
}

// Descendants returns every CourseContent of courseID whose path is a
// descendant of (or equal to) parent, via ltree-style prefix matching.
func (s *CourseContentStore) Descendants(ctx context.Context, courseID string, parent types.Label) ([]CourseContent, error) {
	all, err := s.ListByCourseFiltered(ctx, courseID, authz.Decision{Permitted: true, Filter: authz.Filter{Unrestricted: true}})
	if err != nil {
		return nil, err
	}
	var out []CourseContent
	for _, cc := range all {
		if cc.Path.IsDescendantOf(parent) || cc.Path == parent {
			out = append(out, cc)
		}
	}
	return out, nil
}

func (s *CourseContentStore) Update(ctx context.Context, cc CourseContent) (CourseContent, error) {
	newVersion := cc.Version + 1
	tag, err := s.pool.Exec(ctx, `
		UPDATE course_content SET path=$1, course_content_type_id=$2, position=$3, max_group_size=$4,
			max_submissions=$5, max_test_runs=$6, execution_backend_id=$7, properties=$8, archived_at=$9,
			updated_at=$10, updated_by=$11, version=$12
		WHERE id=$13 AND version=$14
	`, cc.Path.String(), cc.CourseContentTypeID, cc.Position, cc.MaxGroupSize, cc.MaxSubmissions, cc.MaxTestRuns,
		nullableString(cc.ExecutionBackendID), cc.Properties, cc.ArchivedAt, time.Now(), cc.UpdatedBy, newVersion,
		cc.ID, cc.Version)
	if err != nil {
		return CourseContent{}, mapError("updating course content "+cc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return CourseContent{}, apperrors.Conflict("updating course content "+cc.ID, errOptimisticConflict)
	}
	cc.Version = newVersion
	return cc, nil
}

// LinkExecutionBackend persists execution_backend_id on a content whose
// meta.yaml resolved one at release time and had none set yet (spec §4.8).
func (s *CourseContentStore) LinkExecutionBackend(ctx context.Context, contentID, executionBackendID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE course_content SET execution_backend_id = $1, updated_at = now(), version = version + 1
		WHERE id = $2 AND execution_backend_id IS NULL
	`, executionBackendID, contentID)
	if err != nil {
		return mapError("linking execution backend to content "+contentID, err)
	}
	_ = tag
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
