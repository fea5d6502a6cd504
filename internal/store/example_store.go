package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/drewpayment/ctutor-controlplane/pkg/types"
)

// ExampleStore provides CRUD for Example and ExampleVersion, including
// "latest" resolution by version_number (spec §8: "Assigning with
// example_version='latest' resolves to the ExampleVersion with the maximum
// version_number").
type ExampleStore struct {
	pool *pgxpool.Pool
}

func NewExampleStore(pool *pgxpool.Pool) *ExampleStore {
	return &ExampleStore{pool: pool}
}

func (s *ExampleStore) Get(ctx context.Context, id string) (Example, error) {
	var e Example
	var identifier string
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, repository_id, directory, identifier, title, subject, category, tags,
			version_identifier, created_at, updated_at, created_by, updated_by, properties
		FROM example WHERE id = $1
	`, id)
	if err := row.Scan(&e.ID, &e.Version, &e.RepositoryID, &e.Directory, &identifier, &e.Title, &e.Subject,
		&e.Category, &e.Tags, &e.VersionIdentifier, &e.CreatedAt, &e.UpdatedAt, &e.CreatedBy, &e.UpdatedBy, &e.Properties); err != nil {
		return Example{}, mapError("getting example "+id, err)
	}
	e.Identifier, _ = types.NewLabel(identifier)
	return e, nil
}

// LatestVersion returns the ExampleVersion with the maximum version_number
// for exampleID.
func (s *ExampleStore) LatestVersion(ctx context.Context, exampleID string) (ExampleVersion, error) {
	var v ExampleVersion
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, example_id, version_tag, version_number, storage_path, meta_yaml,
			COALESCE(test_yaml, ''), created_at, updated_at, created_by, updated_by, properties
		FROM example_version WHERE example_id = $1 ORDER BY version_number DESC LIMIT 1
	`, exampleID)
	if err := row.Scan(&v.ID, &v.Version, &v.ExampleID, &v.VersionTag, &v.VersionNumber, &v.StoragePath,
		&v.MetaYAML, &v.TestYAML, &v.CreatedAt, &v.UpdatedAt, &v.CreatedBy, &v.UpdatedBy, &v.Properties); err != nil {
		return ExampleVersion{}, mapError("getting latest version of example "+exampleID, err)
	}
	return v, nil
}

// ResolveVersion resolves "latest" or an explicit version tag to one
// ExampleVersion (spec §8 boundary behavior).
func (s *ExampleStore) ResolveVersion(ctx context.Context, exampleID, versionSelector string) (ExampleVersion, error) {
	if versionSelector == "" || versionSelector == "latest" {
		return s.LatestVersion(ctx, exampleID)
	}
	var v ExampleVersion
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, example_id, version_tag, version_number, storage_path, meta_yaml,
			COALESCE(test_yaml, ''), created_at, updated_at, created_by, updated_by, properties
		FROM example_version WHERE example_id = $1 AND version_tag = $2
	`, exampleID, versionSelector)
	if err := row.Scan(&v.ID, &v.Version, &v.ExampleID, &v.VersionTag, &v.VersionNumber, &v.StoragePath,
		&v.MetaYAML, &v.TestYAML, &v.CreatedAt, &v.UpdatedAt, &v.CreatedBy, &v.UpdatedBy, &v.Properties); err != nil {
		return ExampleVersion{}, mapError("resolving version "+versionSelector+" of example "+exampleID, err)
	}
	return v, nil
}

// CreateVersion inserts a new ExampleVersion, rejecting a version_number
// that isn't strictly greater than the current maximum (spec §3 invariant:
// "version_number ... is strictly monotonic per example").
func (s *ExampleStore) CreateVersion(ctx context.Context, v ExampleVersion) (ExampleVersion, error) {
	latest, err := s.LatestVersion(ctx, v.ExampleID)
	if err != nil && !apperrors.Is(err, apperrors.KindNotFound) {
		return ExampleVersion{}, err
	}
	if err == nil && v.VersionNumber <= latest.VersionNumber {
		return ExampleVersion{}, apperrors.Validation("version_number must be strictly greater than the current latest", nil)
	}

	v.ID = uuid.NewString()
	v.Version = 1
	now := time.Now()
	v.CreatedAt, v.UpdatedAt = now, now

	_, err = s.pool.Exec(ctx, `
		INSERT INTO example_version (id, version, example_id, version_tag, version_number, storage_path, meta_yaml, test_yaml,
			created_at, updated_at, created_by, updated_by, properties)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, v.ID, v.Version, v.ExampleID, v.VersionTag, v.VersionNumber, v.StoragePath, v.MetaYAML, nullableString(v.TestYAML),
		v.CreatedAt, v.UpdatedAt, v.CreatedBy, v.UpdatedBy, v.Properties)
	if err != nil {
		return ExampleVersion{}, mapError("creating example version", err)
	}
	return v, nil
}
