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

// HierarchyStore backs the Hierarchy Workflow's idempotent "find or create"
// steps (spec §4.7): every method looks up its entity by natural key first
// and only inserts when absent, so a retried activity never duplicates rows.
type HierarchyStore struct {
	pool *pgxpool.Pool
}

func NewHierarchyStore(pool *pgxpool.Pool) *HierarchyStore {
	return &HierarchyStore{pool: pool}
}

// FindOrCreateOrganization looks up an Organization by path, creating it if
// absent.
func (s *HierarchyStore) FindOrCreateOrganization(ctx context.Context, path types.Label, orgType OrganizationType, createdBy string) (Organization, error) {
	var o Organization
	var p string
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, path, organization_type, properties, created_at, updated_at, created_by, updated_by
		FROM organization WHERE path = $1
	`, path.String())
	err := row.Scan(&o.ID, &o.Version, &p, &o.OrganizationType, &o.Properties, &o.CreatedAt, &o.UpdatedAt, &o.CreatedBy, &o.UpdatedBy)
	if err == nil {
		o.Path, _ = types.NewLabel(p)
		return o, nil
	}
	if err != pgx.ErrNoRows {
		return Organization{}, mapError("getting organization "+path.String(), err)
	}

	o = Organization{
		Base:             Base{ID: uuid.NewString(), Version: 1, CreatedBy: createdBy, UpdatedBy: createdBy, Properties: types.Properties{}},
		Path:             path,
		OrganizationType: orgType,
	}
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	_, err = s.pool.Exec(ctx, `
		INSERT INTO organization (id, version, path, organization_type, properties, created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, o.ID, o.Version, o.Path.String(), o.OrganizationType, o.Properties, o.CreatedAt, o.UpdatedAt, o.CreatedBy, o.UpdatedBy)
	if err != nil {
		return Organization{}, mapError("creating organization "+path.String(), err)
	}
	return o, nil
}

// UpdateOrganizationProperties persists the properties map (used to record
// `properties.gitlab` group identifiers after remote reconciliation).
func (s *HierarchyStore) UpdateOrganizationProperties(ctx context.Context, id string, props types.Properties) error {
	tag, err := s.pool.Exec(ctx, `UPDATE organization SET properties = $1, updated_at = now(), version = version + 1 WHERE id = $2`, props, id)
	if err != nil {
		return mapError("updating organization properties "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("organization "+id, nil)
	}
	return nil
}

// FindOrCreateCourseFamily looks up a CourseFamily by (organization, path).
func (s *HierarchyStore) FindOrCreateCourseFamily(ctx context.Context, orgID string, path types.Label, createdBy string) (CourseFamily, error) {
	var f CourseFamily
	var p string
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, organization_id, path, properties, created_at, updated_at, created_by, updated_by
		FROM course_family WHERE organization_id = $1 AND path = $2
	`, orgID, path.String())
	err := row.Scan(&f.ID, &f.Version, &f.OrganizationID, &p, &f.Properties, &f.CreatedAt, &f.UpdatedAt, &f.CreatedBy, &f.UpdatedBy)
	if err == nil {
		f.Path, _ = types.NewLabel(p)
		return f, nil
	}
	if err != pgx.ErrNoRows {
		return CourseFamily{}, mapError("getting course family", err)
	}

	f = CourseFamily{
		Base:           Base{ID: uuid.NewString(), Version: 1, CreatedBy: createdBy, UpdatedBy: createdBy, Properties: types.Properties{}},
		OrganizationID: orgID,
		Path:           path,
	}
	now := time.Now()
	f.CreatedAt, f.UpdatedAt = now, now
	_, err = s.pool.Exec(ctx, `
		INSERT INTO course_family (id, version, organization_id, path, properties, created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, f.ID, f.Version, f.OrganizationID, f.Path.String(), f.Properties, f.CreatedAt, f.UpdatedAt, f.CreatedBy, f.UpdatedBy)
	if err != nil {
		return CourseFamily{}, mapError("creating course family", err)
	}
	return f, nil
}

// FindOrCreateCourse looks up a Course by (family, path).
func (s *HierarchyStore) FindOrCreateCourse(ctx context.Context, familyID, orgID string, path types.Label, createdBy string) (Course, error) {
	var c Course
	var p string
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, course_family_id, organization_id, path, properties, created_at, updated_at, created_by, updated_by
		FROM course WHERE course_family_id = $1 AND path = $2
	`, familyID, path.String())
	err := row.Scan(&c.ID, &c.Version, &c.CourseFamilyID, &c.OrganizationID, &p, &c.Properties, &c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy)
	if err == nil {
		c.Path, _ = types.NewLabel(p)
		return c, nil
	}
	if err != pgx.ErrNoRows {
		return Course{}, mapError("getting course", err)
	}

	c = Course{
		Base:           Base{ID: uuid.NewString(), Version: 1, CreatedBy: createdBy, UpdatedBy: createdBy, Properties: types.Properties{}},
		CourseFamilyID: familyID,
		OrganizationID: orgID,
		Path:           path,
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err = s.pool.Exec(ctx, `
		INSERT INTO course (id, version, course_family_id, organization_id, path, properties, created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, c.ID, c.Version, c.CourseFamilyID, c.OrganizationID, c.Path.String(), c.Properties, c.CreatedAt, c.UpdatedAt, c.CreatedBy, c.UpdatedBy)
	if err != nil {
		return Course{}, mapError("creating course", err)
	}
	return c, nil
}

// UpdateCourseProperties persists properties.gitlab repository identifiers
// onto the Course row after project creation/reconciliation.
func (s *HierarchyStore) UpdateCourseProperties(ctx context.Context, id string, props types.Properties) error {
	tag, err := s.pool.Exec(ctx, `UPDATE course SET properties = $1, updated_at = now(), version = version + 1 WHERE id = $2`, props, id)
	if err != nil {
		return mapError("updating course properties "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("course "+id, nil)
	}
	return nil
}

// FindOrCreateCourseContentType looks up a CourseContentType by (course,
// slug).
func (s *HierarchyStore) FindOrCreateCourseContentType(ctx context.Context, t CourseContentType, createdBy string) (CourseContentType, error) {
	var existing CourseContentType
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, course_id, slug, title, COALESCE(description,''), course_content_kind, COALESCE(color,''),
			properties, created_at, updated_at, created_by, updated_by
		FROM course_content_type WHERE course_id = $1 AND slug = $2
	`, t.CourseID, t.Slug)
	err := row.Scan(&existing.ID, &existing.Version, &existing.CourseID, &existing.Slug, &existing.Title,
		&existing.Description, &existing.CourseContentKind, &existing.Color, &existing.Properties,
		&existing.CreatedAt, &existing.UpdatedAt, &existing.CreatedBy, &existing.UpdatedBy)
	if err == nil {
		return existing, nil
	}
	if err != pgx.ErrNoRows {
		return CourseContentType{}, mapError("getting course content type", err)
	}

	t.ID = uuid.NewString()
	t.Version = 1
	t.CreatedBy, t.UpdatedBy = createdBy, createdBy
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Properties == nil {
		t.Properties = types.Properties{}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO course_content_type (id, version, course_id, slug, title, description, course_content_kind, color,
			properties, created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, t.ID, t.Version, t.CourseID, t.Slug, t.Title, nullableString(t.Description), t.CourseContentKind,
		nullableString(t.Color), t.Properties, t.CreatedAt, t.UpdatedAt, t.CreatedBy, t.UpdatedBy)
	if err != nil {
		return CourseContentType{}, mapError("creating course content type", err)
	}
	return t, nil
}

// FindOrCreateCourseRole looks up a CourseRole by id (built-in roles are
// keyed by their well-known id, e.g. "_owner", "_student").
func (s *HierarchyStore) FindOrCreateCourseRole(ctx context.Context, id string, builtin bool, createdBy string) (CourseRole, error) {
	var r CourseRole
	row := s.pool.QueryRow(ctx, `SELECT id, version, builtin, properties, created_at, updated_at, created_by, updated_by FROM course_role WHERE id = $1`, id)
	err := row.Scan(&r.ID, &r.Version, &r.Builtin, &r.Properties, &r.CreatedAt, &r.UpdatedAt, &r.CreatedBy, &r.UpdatedBy)
	if err == nil {
		return r, nil
	}
	if err != pgx.ErrNoRows {
		return CourseRole{}, mapError("getting course role", err)
	}

	r = CourseRole{Base: Base{ID: id, Version: 1, CreatedBy: createdBy, UpdatedBy: createdBy, Properties: types.Properties{}}, Builtin: builtin}
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	_, err = s.pool.Exec(ctx, `
		INSERT INTO course_role (id, version, builtin, properties, created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, r.ID, r.Version, r.Builtin, r.Properties, r.CreatedAt, r.UpdatedAt, r.CreatedBy, r.UpdatedBy)
	if err != nil {
		return CourseRole{}, mapError("creating course role", err)
	}
	return r, nil
}

// FindOrCreateUserByProviderAccount resolves a User via its Account's
// (provider, provider_account_id), creating both rows when absent.
func (s *HierarchyStore) FindOrCreateUserByProviderAccount(ctx context.Context, provider, providerAccountID, createdBy string) (User, Account, error) {
	var u User
	var a Account
	row := s.pool.QueryRow(ctx, `
		SELECT u.id, u.version, u.user_type, COALESCE(u.email,''), u.properties, u.created_at, u.updated_at, u.created_by, u.updated_by,
			a.id, a.version, a.user_id, a.provider, a.type, a.provider_account_id, a.properties, a.created_at, a.updated_at, a.created_by, a.updated_by
		FROM account a JOIN "user" u ON u.id = a.user_id
		WHERE a.provider = $1 AND a.provider_account_id = $2
	`, provider, providerAccountID)
	err := row.Scan(&u.ID, &u.Version, &u.UserType, &u.Email, &u.Properties, &u.CreatedAt, &u.UpdatedAt, &u.CreatedBy, &u.UpdatedBy,
		&a.ID, &a.Version, &a.UserID, &a.Provider, &a.Type, &a.ProviderAccountID, &a.Properties, &a.CreatedAt, &a.UpdatedAt, &a.CreatedBy, &a.UpdatedBy)
	if err == nil {
		return u, a, nil
	}
	if err != pgx.ErrNoRows {
		return User{}, Account{}, mapError("getting user by account", err)
	}

	now := time.Now()
	u = User{
		Base:     Base{ID: uuid.NewString(), Version: 1, CreatedBy: createdBy, UpdatedBy: createdBy, Properties: types.Properties{}},
		UserType: UserTypeHuman,
	}
	u.CreatedAt, u.UpdatedAt = now, now
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO "user" (id, version, user_type, email, properties, created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, u.ID, u.Version, u.UserType, nullableString(u.Email), u.Properties, u.CreatedAt, u.UpdatedAt, u.CreatedBy, u.UpdatedBy); err != nil {
		return User{}, Account{}, mapError("creating user", err)
	}

	a = Account{
		Base:              Base{ID: uuid.NewString(), Version: 1, CreatedBy: createdBy, UpdatedBy: createdBy, Properties: types.Properties{}},
		UserID:            u.ID,
		Provider:          provider,
		Type:              "oauth",
		ProviderAccountID: providerAccountID,
	}
	a.CreatedAt, a.UpdatedAt = now, now
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO account (id, version, user_id, provider, type, provider_account_id, properties, created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, a.ID, a.Version, a.UserID, a.Provider, a.Type, a.ProviderAccountID, a.Properties, a.CreatedAt, a.UpdatedAt, a.CreatedBy, a.UpdatedBy); err != nil {
		return User{}, Account{}, mapError("creating account", err)
	}
	return u, a, nil
}

// FindOrCreateCourseGroup looks up a CourseGroup by (course, title).
func (s *HierarchyStore) FindOrCreateCourseGroup(ctx context.Context, courseID, title, createdBy string) (CourseGroup, error) {
	var g CourseGroup
	row := s.pool.QueryRow(ctx, `SELECT id, version, course_id, title, properties, created_at, updated_at, created_by, updated_by FROM course_group WHERE course_id = $1 AND title = $2`, courseID, title)
	err := row.Scan(&g.ID, &g.Version, &g.CourseID, &g.Title, &g.Properties, &g.CreatedAt, &g.UpdatedAt, &g.CreatedBy, &g.UpdatedBy)
	if err == nil {
		return g, nil
	}
	if err != pgx.ErrNoRows {
		return CourseGroup{}, mapError("getting course group", err)
	}

	g = CourseGroup{Base: Base{ID: uuid.NewString(), Version: 1, CreatedBy: createdBy, UpdatedBy: createdBy, Properties: types.Properties{}}, CourseID: courseID, Title: title}
	now := time.Now()
	g.CreatedAt, g.UpdatedAt = now, now
	_, err = s.pool.Exec(ctx, `
		INSERT INTO course_group (id, version, course_id, title, properties, created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, g.ID, g.Version, g.CourseID, g.Title, g.Properties, g.CreatedAt, g.UpdatedAt, g.CreatedBy, g.UpdatedBy)
	if err != nil {
		return CourseGroup{}, mapError("creating course group", err)
	}
	return g, nil
}

// FindOrCreateCourseMember looks up a CourseMember by (user, course).
func (s *HierarchyStore) FindOrCreateCourseMember(ctx context.Context, m CourseMember, createdBy string) (CourseMember, error) {
	var existing CourseMember
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, user_id, course_id, COALESCE(course_group_id,''), course_role_id, properties, created_at, updated_at, created_by, updated_by
		FROM course_member WHERE user_id = $1 AND course_id = $2
	`, m.UserID, m.CourseID)
	err := row.Scan(&existing.ID, &existing.Version, &existing.UserID, &existing.CourseID, &existing.CourseGroupID,
		&existing.CourseRoleID, &existing.Properties, &existing.CreatedAt, &existing.UpdatedAt, &existing.CreatedBy, &existing.UpdatedBy)
	if err == nil {
		return existing, nil
	}
	if err != pgx.ErrNoRows {
		return CourseMember{}, mapError("getting course member", err)
	}

	m.ID = uuid.NewString()
	m.Version = 1
	m.CreatedBy, m.UpdatedBy = createdBy, createdBy
	now := time.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	if m.Properties == nil {
		m.Properties = types.Properties{}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO course_member (id, version, user_id, course_id, course_group_id, course_role_id, properties, created_at, updated_at, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, m.ID, m.Version, m.UserID, m.CourseID, nullableString(m.CourseGroupID), m.CourseRoleID, m.Properties,
		m.CreatedAt, m.UpdatedAt, m.CreatedBy, m.UpdatedBy)
	if err != nil {
		return CourseMember{}, mapError("creating course member", err)
	}
	return m, nil
}

// UpdateCourseMemberProperties persists properties (e.g.
// `gitlab_repository`) onto an existing CourseMember.
func (s *HierarchyStore) UpdateCourseMemberProperties(ctx context.Context, id string, props types.Properties) error {
	tag, err := s.pool.Exec(ctx, `UPDATE course_member SET properties = $1, updated_at = now(), version = version + 1 WHERE id = $2`, props, id)
	if err != nil {
		return mapError("updating course member properties "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("course member "+id, nil)
	}
	return nil
}

// GetCourseMember fetches one CourseMember by id.
func (s *HierarchyStore) GetCourseMember(ctx context.Context, id string) (CourseMember, error) {
	var m CourseMember
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, user_id, course_id, COALESCE(course_group_id,''), course_role_id, properties, created_at, updated_at, created_by, updated_by
		FROM course_member WHERE id = $1
	`, id)
	if err := row.Scan(&m.ID, &m.Version, &m.UserID, &m.CourseID, &m.CourseGroupID, &m.CourseRoleID, &m.Properties,
		&m.CreatedAt, &m.UpdatedAt, &m.CreatedBy, &m.UpdatedBy); err != nil {
		return CourseMember{}, mapError("getting course member "+id, err)
	}
	return m, nil
}

// ListCourseMembersByRole returns every CourseMember of courseID holding
// roleID (e.g. "_student"), the set the Student Repository Workflow forks
// projects for (spec §4.9).
func (s *HierarchyStore) ListCourseMembersByRole(ctx context.Context, courseID, roleID string) ([]CourseMember, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, version, user_id, course_id, COALESCE(course_group_id,''), course_role_id, properties, created_at, updated_at, created_by, updated_by
		FROM course_member WHERE course_id = $1 AND course_role_id = $2
	`, courseID, roleID)
	if err != nil {
		return nil, mapError("listing course members by role", err)
	}
	defer rows.Close()

	var out []CourseMember
	for rows.Next() {
		var m CourseMember
		if err := rows.Scan(&m.ID, &m.Version, &m.UserID, &m.CourseID, &m.CourseGroupID, &m.CourseRoleID, &m.Properties,
			&m.CreatedAt, &m.UpdatedAt, &m.CreatedBy, &m.UpdatedBy); err != nil {
			return nil, mapError("scanning course member row", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterating course member rows", err)
	}
	return out, nil
}

// GetUser fetches one User by id.
func (s *HierarchyStore) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, user_type, COALESCE(email,''), properties, created_at, updated_at, created_by, updated_by
		FROM "user" WHERE id = $1
	`, id)
	if err := row.Scan(&u.ID, &u.Version, &u.UserType, &u.Email, &u.Properties, &u.CreatedAt, &u.UpdatedAt, &u.CreatedBy, &u.UpdatedBy); err != nil {
		return User{}, mapError("getting user "+id, err)
	}
	return u, nil
}
