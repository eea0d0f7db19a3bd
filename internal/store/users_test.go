package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "wolweb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRegisterThenAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Users.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, SuperuserID, id)

	got, err := s.Users.Authenticate(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = s.Users.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrAuthFailure)
	_, err = s.Users.Authenticate(ctx, "nobody", "secret123")
	assert.ErrorIs(t, err, ErrAuthFailure)
}

func TestRegisterDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Users.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = s.Users.Register(ctx, "alice", "other@example.com", "secret123")
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = s.Users.Register(ctx, "bob", "alice@example.com", "secret123")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	// No partial writes from the failed attempts.
	users, err := s.Users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Users.Register(ctx, "ab", "a@example.com", "secret123")
	assert.Error(t, err)
	_, err = s.Users.Register(ctx, "alice", "not-an-email", "secret123")
	assert.Error(t, err)
	_, err = s.Users.Register(ctx, "alice", "a@example.com", "1234")
	assert.Error(t, err)
}

func TestFirstUserIsAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Users.Register(ctx, "root", "root@example.com", "secret123")
	require.NoError(t, err)
	second, err := s.Users.Register(ctx, "bob", "bob@example.com", "secret123")
	require.NoError(t, err)

	u1, err := s.Users.GetByID(ctx, first)
	require.NoError(t, err)
	assert.True(t, u1.IsAdmin)

	u2, err := s.Users.GetByID(ctx, second)
	require.NoError(t, err)
	assert.False(t, u2.IsAdmin)
}

func TestSuperuserProtection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Users.Register(ctx, "root", "root@example.com", "secret123")
	require.NoError(t, err)
	bob, err := s.Users.Register(ctx, "bob", "bob@example.com", "secret123")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Users.SetAdmin(ctx, SuperuserID, false), ErrForbiddenOperation)
	assert.ErrorIs(t, s.Users.Delete(ctx, SuperuserID), ErrForbiddenOperation)

	// Setting the flag the superuser already carries is a no-op, not an error.
	assert.NoError(t, s.Users.SetAdmin(ctx, SuperuserID, true))

	require.NoError(t, s.Users.SetAdmin(ctx, bob, true))
	u, err := s.Users.GetByID(ctx, bob)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)

	require.NoError(t, s.Users.Delete(ctx, bob))
	_, err = s.Users.GetByID(ctx, bob)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Users.Delete(ctx, bob), ErrNotFound)
}

func TestSetPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Users.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, s.Users.SetPassword(ctx, id, "newsecret"))
	_, err = s.Users.Authenticate(ctx, "alice", "secret123")
	assert.ErrorIs(t, err, ErrAuthFailure)
	got, err := s.Users.Authenticate(ctx, "alice", "newsecret")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	assert.ErrorIs(t, s.Users.SetPassword(ctx, 999, "whatever1"), ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice, err := s.Users.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	_, err = s.Users.Register(ctx, "bob", "bob@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, s.Users.UpdateProfile(ctx, alice, "alice2", "alice2@example.com"))
	u, err := s.Users.GetByID(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice2", u.Username)

	err = s.Users.UpdateProfile(ctx, alice, "bob", "alice2@example.com")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	err = s.Users.UpdateProfile(ctx, alice, "alice2", "bob@example.com")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}
