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

// CourseStore provides CRUD and course-scoped listing for Course, grounded
// on spec §3/§4.3. Every mutation validates the path and checks optimistic
// concurrency on version.
type CourseStore struct {
	pool *pgxpool.Pool
}

func NewCourseStore(pool *pgxpool.Pool) *CourseStore {
	return &CourseStore{pool: pool}
}

// Create inserts a new Course under a course family.
func (s *CourseStore) Create(ctx context.Context, c Course) (Course, error) {
	if err := c.Path.Validate(); err != nil {
		return Course{}, mapError("validating course path", err)
	}
	c.ID = uuid.NewString()
	c.Version = 1
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO course (id, version, course_family_id, organization_id, path, properties, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.Version, c.CourseFamilyID, c.OrganizationID, c.Path.String(), c.Properties, c.CreatedAt, c.UpdatedAt, c.CreatedBy, c.UpdatedBy)
	if err != nil {
		return Course{}, mapError("creating course", err)
	}
	return c, nil
}

// Get fetches one Course by id.
func (s *CourseStore) Get(ctx context.Context, id string) (Course, error) {
	var c Course
	var path string
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, course_family_id, organization_id, path, properties, created_at, updated_at, created_by, updated_by
		FROM course WHERE id = $1
	`, id)
	if err := row.Scan(&c.ID, &c.Version, &c.CourseFamilyID, &c.OrganizationID, &path, &c.Properties, &c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy); err != nil {
		return Course{}, mapError("getting course "+id, err)
	}
	c.Path, _ = types.NewLabel(path)
	return c, nil
}

// ListFiltered applies an authz.Decision's Filter to scope visible courses
// to the caller's permitted set (spec §4.2/§4.3).
func (s *CourseStore) ListFiltered(ctx context.Context, d authz.Decision, skip, limit int) ([]Course, error) {
	var query string
	var args []any
	switch {
	case d.Filter.Unrestricted:
		query = `SELECT id, version, course_family_id, organization_id, path, properties, created_at, updated_at, created_by, updated_by
			FROM course ORDER BY path OFFSET $1 LIMIT $2`
		args = []any{skip, limit}
	case len(d.Filter.CourseIDIn) > 0:
		query = `SELECT id, version, course_family_id, organization_id, path, properties, created_at, updated_at, created_by, updated_by
			FROM course WHERE id = ANY($1) ORDER BY path OFFSET $2 LIMIT $3`
		args = []any{d.Filter.CourseIDIn, skip, limit}
	default:
		return nil, nil
	}

	pgxRows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("listing courses", err)
	}
	defer pgxRows.Close()

	var out []Course
	for pgxRows.Next() {
		var c Course
		var path string
		if err := pgxRows.Scan(&c.ID, &c.Version, &c.CourseFamilyID, &c.OrganizationID, &path, &c.Properties, &c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy); err != nil {
			return nil, mapError("scanning course row", err)
		}
		c.Path, _ = types.NewLabel(path)
		out = append(out, c)
	}
	if err := pgxRows.Err(); err != nil {
		return nil, mapError("iterating course rows", err)
	}
	return out, nil
}

// Update writes c back with optimistic concurrency: the WHERE clause
// requires the row still be at c.Version, and a zero rows-affected result is
// reported as a conflict.
func (s *CourseStore) Update(ctx context.Context, c Course) (Course, error) {
	if err := c.Path.Validate(); err != nil {
		return Course{}, apperrors.Validation("invalid course path", err)
	}
	newVersion := c.Version + 1
	tag, err := s.pool.Exec(ctx, `
		UPDATE course SET path = $1, properties = $2, updated_at = $3, updated_by = $4, version = $5
		WHERE id = $6 AND version = $7
	`, c.Path.String(), c.Properties, time.Now(), c.UpdatedBy, newVersion, c.ID, c.Version)
	if err != nil {
		return Course{}, mapError("updating course "+c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return Course{}, apperrors.Conflict("updating course "+c.ID, errOptimisticConflict)
	}
	c.Version = newVersion
	return c, nil
}
