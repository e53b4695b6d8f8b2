package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_GetMissingKey(t *testing.T) {
	s := openMemory(t)

	v, err := s.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSQLiteStore_SetGetOverwriteDelete(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, s.Set(ctx, "k", []byte("v2")))
	v, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, s.Delete(ctx, "k"))
	v, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, v)

	// deleting again is fine
	require.NoError(t, s.Delete(ctx, "k"))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "session.db")

	s1, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "amp.auth.session", []byte(`{"ok":true}`)))
	require.NoError(t, s1.Close())

	// reopening runs migrations again and must be a no-op
	s2, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.Get(ctx, "amp.auth.session")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(v))
}

func TestSQLiteStore_ClosedDatabaseErrors(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, s.Set(context.Background(), "k", []byte("v")))
	assert.Error(t, s.Delete(context.Background(), "k"))
}
