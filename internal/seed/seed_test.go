package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appModels "github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/pkg/auth"
)

type memStore struct {
	ops      []*appModels.Operator
	countErr error
}

func (m *memStore) Count(context.Context) (int64, error) {
	return int64(len(m.ops)), m.countErr
}

func (m *memStore) Create(_ context.Context, op *appModels.Operator) error {
	op.ID = int64(len(m.ops) + 1)
	m.ops = append(m.ops, op)
	return nil
}

func TestEnsureAdmin(t *testing.T) {
	store := &memStore{}

	require.NoError(t, EnsureAdmin(context.Background(), store, " Admin@Univ-Tol.mg ", "changeme", zerolog.Nop()))
	require.Len(t, store.ops, 1)

	admin := store.ops[0]
	assert.Equal(t, "admin@univ-tol.mg", admin.Email)
	assert.Equal(t, appModels.RoleAdmin, admin.RoleType)
	assert.True(t, admin.IsActive)
	assert.True(t, auth.CheckPassword(admin.Password, "changeme"))

	// A second start leaves the table alone.
	require.NoError(t, EnsureAdmin(context.Background(), store, "other@univ-tol.mg", "secret", zerolog.Nop()))
	assert.Len(t, store.ops, 1)
}

func TestEnsureAdmin_NotConfigured(t *testing.T) {
	store := &memStore{}
	require.NoError(t, EnsureAdmin(context.Background(), store, "", "", zerolog.Nop()))
	assert.Empty(t, store.ops)
}

func TestEnsureAdmin_CountFails(t *testing.T) {
	store := &memStore{countErr: errors.New("db down")}
	assert.Error(t, EnsureAdmin(context.Background(), store, "admin@univ-tol.mg", "x", zerolog.Nop()))
}

func TestCreateOperator_RejectsUnknownRole(t *testing.T) {
	_, err := CreateOperator(context.Background(), &memStore{}, NewOperator{Email: "a@b.c", Password: "x", Role: "ROOT"})
	assert.Error(t, err)
}
