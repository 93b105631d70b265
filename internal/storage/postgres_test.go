package storage

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	internalerrors "github.com/eth-reserves/internal/errors"
)

func TestDBError(t *testing.T) {
	t.Run("check violation is a validation error", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: pgCheckViolation, ConstraintName: "purchases_total_cost_check"}
		err := dbError("insert purchase", fmt.Errorf("exec: %w", pgErr))

		assert.True(t, internalerrors.IsValidation(err))
		cat := internalerrors.Categorize(err)
		assert.Equal(t, http.StatusBadRequest, cat.StatusCode)
		assert.Contains(t, cat.Details, "purchases_total_cost_check")
	})

	t.Run("other failures are database errors", func(t *testing.T) {
		err := dbError("list companies", context.Canceled)

		cat := internalerrors.Categorize(err)
		assert.Equal(t, internalerrors.CategoryDatabase, cat.Category)
		assert.Equal(t, http.StatusInternalServerError, cat.StatusCode)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("unique violation", func(t *testing.T) {
		assert.True(t, isUniqueViolation(&pgconn.PgError{Code: pgUniqueViolation}))
		assert.False(t, isUniqueViolation(&pgconn.PgError{Code: pgCheckViolation}))
	})
}
