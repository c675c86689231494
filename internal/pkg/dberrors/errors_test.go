package dberrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestConstraintClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "tickets_ticket_code_key"})
	fk := &pgconn.PgError{Code: "23503"}
	check := &pgconn.PgError{Code: "23514"}

	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsDuplicateConstraintError(unique, "tickets_ticket_code_key"))
	assert.False(t, IsDuplicateConstraintError(unique, "students_matricule_key"))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.True(t, IsCheckViolation(check))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, IsConnectionError(context.DeadlineExceeded))
	assert.True(t, IsConnectionError(&pgconn.PgError{Code: "08006"}))
	assert.True(t, IsConnectionError(&pgconn.PgError{Code: "57P01"}))
	assert.False(t, IsConnectionError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsConnectionError(nil))
	assert.False(t, IsConnectionError(errors.New("syntax")))
}
