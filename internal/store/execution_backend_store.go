package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ExecutionBackendStore resolves ExecutionBackend rows by slug, the lookup
// the Student-Template Workflow performs when a content's meta.yaml declares
// `properties.executionBackend.slug` (spec §4.8).
type ExecutionBackendStore struct {
	pool *pgxpool.Pool
}

func NewExecutionBackendStore(pool *pgxpool.Pool) *ExecutionBackendStore {
	return &ExecutionBackendStore{pool: pool}
}

// FindBySlug returns the ExecutionBackend identified by slug, or a NotFound
// apperror if none is registered.
func (s *ExecutionBackendStore) FindBySlug(ctx context.Context, slug string) (ExecutionBackend, error) {
	var b ExecutionBackend
	row := s.pool.QueryRow(ctx, `
		SELECT id, version, slug, type, properties, created_at, updated_at, created_by, updated_by
		FROM execution_backend WHERE slug = $1
	`, slug)
	if err := row.Scan(&b.ID, &b.Version, &b.Slug, &b.Type, &b.Properties, &b.CreatedAt, &b.UpdatedAt, &b.CreatedBy, &b.UpdatedBy); err != nil {
		return ExecutionBackend{}, mapError("finding execution backend "+slug, err)
	}
	return b, nil
}
