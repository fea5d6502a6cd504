package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drewpayment/ctutor-controlplane/internal/identity"
)

// IdentityStore joins UserRole -> Role -> RoleClaim plus per-course
// CourseMember rows into the claim strings identity.BuildClaims consumes
// (spec §4.1 "Principal construction").
type IdentityStore struct {
	pool *pgxpool.Pool
}

func NewIdentityStore(pool *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{pool: pool}
}

// LoadPrincipal builds a Principal for userID by joining its global role
// claims and its per-course membership rows.
func (s *IdentityStore) LoadPrincipal(ctx context.Context, userID string, hierarchy identity.RoleHierarchy) (identity.Principal, error) {
	roleIDs, err := s.globalRoleIDs(ctx, userID)
	if err != nil {
		return identity.Principal{}, err
	}

	claimValues, err := s.roleClaimValues(ctx, roleIDs)
	if err != nil {
		return identity.Principal{}, err
	}

	courseClaims, err := s.courseMembershipClaims(ctx, userID)
	if err != nil {
		return identity.Principal{}, err
	}
	claimValues = append(claimValues, courseClaims...)

	claims := identity.BuildClaims(claimValues)
	p := identity.NewPrincipal(userID, roleIDs, claims)
	p = p.WithDefaultReadClaims()
	p = p.WithImplicitAuthoringClaims(hierarchy)
	return p, nil
}

func (s *IdentityStore) globalRoleIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT role_id FROM user_role WHERE user_id = $1`, userID)
	if err != nil {
		return nil, mapError("loading user roles for "+userID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			return nil, mapError("scanning user role row", err)
		}
		out = append(out, roleID)
	}
	return out, rows.Err()
}

func (s *IdentityStore) roleClaimValues(ctx context.Context, roleIDs []string) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT claim_value FROM role_claim WHERE role_id = ANY($1) AND claim_type = 'permissions'
	`, roleIDs)
	if err != nil {
		return nil, mapError("loading role claims", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, mapError("scanning role claim row", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// courseMembershipClaims encodes each CourseMember row as the
// `course:<course_role_id>:<course_id>` claim string spec §4.1 defines.
func (s *IdentityStore) courseMembershipClaims(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT course_id, course_role_id FROM course_member WHERE user_id = $1`, userID)
	if err != nil {
		return nil, mapError("loading course memberships for "+userID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var courseID, roleID string
		if err := rows.Scan(&courseID, &roleID); err != nil {
			return nil, mapError("scanning course member row", err)
		}
		out = append(out, "course:"+roleID+":"+courseID)
	}
	return out, rows.Err()
}
