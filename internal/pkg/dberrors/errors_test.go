package dberrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsCheckViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23514", ConstraintName: "payments_single_owner"})

	assert.True(t, IsCheckViolation(err, "payments_single_owner"))
	assert.True(t, IsCheckViolation(err, ""))
	assert.False(t, IsCheckViolation(err, "fee_structures_amount_check"))
	assert.False(t, IsCheckViolation(&pgconn.PgError{Code: "23505"}, ""))
	assert.False(t, IsCheckViolation(errors.New("boom"), ""))
}

func TestIsDuplicateConstraintError(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}

	assert.True(t, IsDuplicateConstraintError(err, "users_email_key"))
	assert.True(t, IsDuplicateConstraintError(err, ""))
	assert.False(t, IsDuplicateConstraintError(err, "payments_transaction_id_key"))
	assert.False(t, IsForeignKeyViolation(err))
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
}
