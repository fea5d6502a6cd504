package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/drewpayment/ctutor-controlplane/internal/apperrors"
	"github.com/stretchr/testify/assert"
)

func TestNullableString(t *testing.T) {
	assert.Nil(t, nullableString(""))
	assert.Equal(t, "x", nullableString("x"))
}

func TestMapError_NoRows(t *testing.T) {
	err := mapError("getting thing", pgx.ErrNoRows)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestMapError_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505"}
	err := mapError("creating thing", pgErr)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestMapError_ForeignKeyViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503"}
	err := mapError("creating thing", pgErr)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestMapError_UnknownWrapsAsUpstream(t *testing.T) {
	err := mapError("calling thing", errors.New("boom"))
	assert.True(t, apperrors.Is(err, apperrors.KindUpstream))
}
