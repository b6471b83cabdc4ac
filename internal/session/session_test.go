package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market/internal/models"
)

type fakeRoles struct {
	role  models.Role
	err   error
	calls int
}

func (f *fakeRoles) GetRole(ctx context.Context, chatID int64) (models.Role, error) {
	f.calls++
	return f.role, f.err
}

func TestMemoryStore_LoadSaveDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, err := store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &Session{}, s)

	s.Role = models.RoleSeller
	s.ExpectedInput = InputAPIKeyAdd
	// Not visible until saved
	loaded, _ := store.Load(ctx, 1)
	assert.Equal(t, models.RoleUnset, loaded.Role)

	require.NoError(t, store.Save(ctx, 1, s))
	loaded, _ = store.Load(ctx, 1)
	assert.Equal(t, models.RoleSeller, loaded.Role)
	assert.Equal(t, InputAPIKeyAdd, loaded.ExpectedInput)

	require.NoError(t, store.Delete(ctx, 1))
	loaded, _ = store.Load(ctx, 1)
	assert.Equal(t, &Session{}, loaded)
}

func TestSession_ResetAndClearInput(t *testing.T) {
	shop := models.Shop{ID: 3, Name: "Shop"}.Summary()
	s := &Session{
		Role:            models.RoleAdmin,
		SelectedShop:    &shop,
		ExpectedInput:   InputPassword,
		PendingUsername: "root",
	}

	s.ClearInput()
	assert.Equal(t, InputNone, s.ExpectedInput)
	assert.Empty(t, s.PendingUsername)
	assert.NotNil(t, s.SelectedShop)

	s.Reset()
	assert.Equal(t, Session{}, *s)
}

func TestResolveRole_ReadThrough(t *testing.T) {
	ctx := context.Background()
	src := &fakeRoles{role: models.RoleAdmin}
	s := &Session{}

	role, err := ResolveRole(ctx, src, 5, s)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)
	assert.Equal(t, models.RoleAdmin, s.Role)

	_, err = ResolveRole(ctx, src, 5, s)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestResolveRole_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := ResolveRole(ctx, &fakeRoles{}, 1, &Session{Role: "XX"})
	assert.ErrorIs(t, err, models.ErrUnknownRole)

	boom := errors.New("directory down")
	_, err = ResolveRole(ctx, &fakeRoles{err: boom}, 1, &Session{})
	assert.ErrorIs(t, err, boom)

	s := &Session{}
	role, err := ResolveRole(ctx, &fakeRoles{role: models.RoleUnset}, 1, s)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUnset, role)
	assert.Equal(t, models.RoleUnset, s.Role)
}
