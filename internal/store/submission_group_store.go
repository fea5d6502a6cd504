package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/drewpayment/ctutor-controlplane/pkg/types"
)

// SubmissionGroupStore backs the Student Repository Workflow's lookup of the
// submission groups a forked repository belongs to (spec §4.9 step 5).
type SubmissionGroupStore struct {
	pool *pgxpool.Pool
}

func NewSubmissionGroupStore(pool *pgxpool.Pool) *SubmissionGroupStore {
	return &SubmissionGroupStore{pool: pool}
}

// FindOrCreateForMember returns the CourseSubmissionGroup a CourseMember
// submits through for contentID, creating a single-member group if none
// exists yet (the common case: one student, one group, max_group_size=1).
func (s *SubmissionGroupStore) FindOrCreateForMember(ctx context.Context, member CourseMember, contentID string, maxGroupSize int, createdBy string) (CourseSubmissionGroup, error) {
	var g CourseSubmissionGroup
	row := s.pool.QueryRow(ctx, `
		SELECT g.id, g.version, g.course_id, g.course_content_id, g.max_group_size, COALESCE(g.max_submissions,0),
			COALESCE(g.max_test_runs,0), g.properties, g.created_at, g.updated_at, g.created_by, g.updated_by
		FROM course_submission_group g
		JOIN course_submission_group_member m ON m.course_submission_group_id = g.id
		WHERE g.course_content_id = $1 AND m.course_member_id = $2
	`, contentID, member.ID)
	err := row.Scan(&g.ID, &g.Version, &g.CourseID, &g.CourseContentID, &g.MaxGroupSize, &g.MaxSubmissions,
		&g.MaxTestRuns, &g.Properties, &g.CreatedAt, &g.UpdatedAt, &g.CreatedBy, &g.UpdatedBy)
	if err == nil {
		return g, nil
	}
	if err != pgx.ErrNoRows {
		return CourseSubmissionGroup{}, mapError("getting submission group for member", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return CourseSubmissionGroup{}, apperrors.Internal("beginning submission group transaction", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	g = CourseSubmissionGroup{
		Base:            Base{ID: uuid.NewString(), Version: 1, CreatedBy: createdBy, UpdatedBy: createdBy, Properties: types.Properties{}},
		CourseID:        member.CourseID,
		CourseContentID: contentID,
		MaxGroupSize:    maxGroupSize,
	}
	g.CreatedAt, g.UpdatedAt = now, now
	if _, err := tx.Exec(ctx, `
		INSERT INTO course_submission_group (id, version, course_id, course_content_id, max_group_size, properties,
			created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, g.ID, g.Version, g.CourseID, g.CourseContentID, g.MaxGroupSize, g.Properties, g.CreatedAt, g.UpdatedAt, g.CreatedBy, g.UpdatedBy); err != nil {
		return CourseSubmissionGroup{}, mapError("creating submission group", err)
	}

	memberRow := CourseSubmissionGroupMember{
		Base:                    Base{ID: uuid.NewString(), Version: 1, CreatedBy: createdBy, UpdatedBy: createdBy, Properties: types.Properties{}},
		CourseID:                member.CourseID,
		CourseSubmissionGroupID: g.ID,
		CourseMemberID:          member.ID,
	}
	memberRow.CreatedAt, memberRow.UpdatedAt = now, now
	if _, err := tx.Exec(ctx, `
		INSERT INTO course_submission_group_member (id, version, course_id, course_submission_group_id, course_member_id,
			properties, created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, memberRow.ID, memberRow.Version, memberRow.CourseID, memberRow.CourseSubmissionGroupID, memberRow.CourseMemberID,
		memberRow.Properties, memberRow.CreatedAt, memberRow.UpdatedAt, memberRow.CreatedBy, memberRow.UpdatedBy); err != nil {
		return CourseSubmissionGroup{}, mapError("creating submission group member", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return CourseSubmissionGroup{}, apperrors.Internal("committing submission group transaction", err)
	}
	return g, nil
}

// ListForMember returns every submission group a CourseMember belongs to
// across all of a course's content (spec §4.9 step 5: "each referenced
// CourseSubmissionGroup").
func (s *SubmissionGroupStore) ListForMember(ctx context.Context, memberID string) ([]CourseSubmissionGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.version, g.course_id, g.course_content_id, g.max_group_size, COALESCE(g.max_submissions,0),
			COALESCE(g.max_test_runs,0), g.properties, g.created_at, g.updated_at, g.created_by, g.updated_by
		FROM course_submission_group g
		JOIN course_submission_group_member m ON m.course_submission_group_id = g.id
		WHERE m.course_member_id = $1
	`, memberID)
	if err != nil {
		return nil, mapError("listing submission groups for member "+memberID, err)
	}
	defer rows.Close()

	var out []CourseSubmissionGroup
	for rows.Next() {
		var g CourseSubmissionGroup
		if err := rows.Scan(&g.ID, &g.Version, &g.CourseID, &g.CourseContentID, &g.MaxGroupSize, &g.MaxSubmissions,
			&g.MaxTestRuns, &g.Properties, &g.CreatedAt, &g.UpdatedAt, &g.CreatedBy, &g.UpdatedBy); err != nil {
			return nil, mapError("scanning submission group row", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterating submission group rows", err)
	}
	return out, nil
}

// UpdateProperties persists properties.gitlab onto a submission group after
// its repository is forked.
func (s *SubmissionGroupStore) UpdateProperties(ctx context.Context, id string, props types.Properties) error {
	tag, err := s.pool.Exec(ctx, `UPDATE course_submission_group SET properties = $1, updated_at = now(), version = version + 1 WHERE id = $2`, props, id)
	if err != nil {
		return mapError("updating submission group properties "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("submission group "+id, nil)
	}
	return nil
}
