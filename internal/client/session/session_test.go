package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/amp/internal/client/store"
	"github.com/hitoshi/amp/internal/model"
)

func sampleSession() Session {
	return Session{
		User:   model.PublicUser{ID: "user-1", Email: "a@example.com"},
		Tokens: model.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"},
	}
}

// memRepo is an in-memory store.Repository with failure hooks.
type memRepo struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newMemRepo() *memRepo { return &memRepo{data: make(map[string][]byte)} }

func (r *memRepo) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.data[key], nil
}

func (r *memRepo) Set(_ context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setErr != nil {
		return r.setErr
	}
	r.data[key] = value
	return nil
}

func (r *memRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, key)
	return nil
}

var _ store.Repository = (*memRepo)(nil)

func TestNewManager_EmptyStore(t *testing.T) {
	m, err := NewManager(context.Background(), newMemRepo())
	require.NoError(t, err)

	assert.Nil(t, m.Current())
	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, m.AccessToken())
	assert.Empty(t, m.RefreshToken())
}

func TestNewManager_RestoresPersistedSession(t *testing.T) {
	repo := newMemRepo()
	raw, _ := json.Marshal(sampleSession())
	repo.data[StorageKey] = raw

	m, err := NewManager(context.Background(), repo)
	require.NoError(t, err)

	require.NotNil(t, m.Current())
	assert.Equal(t, sampleSession(), *m.Current())
	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "refresh-1", m.RefreshToken())
}

func TestNewManager_MalformedRecordIsDiscarded(t *testing.T) {
	repo := newMemRepo()
	repo.data[StorageKey] = []byte("{not json")

	m, err := NewManager(context.Background(), repo)
	require.NoError(t, err)

	assert.Nil(t, m.Current())
	_, stillThere := repo.data[StorageKey]
	assert.False(t, stillThere, "malformed record should be removed")
}

func TestNewManager_NullRecordMeansNoSession(t *testing.T) {
	repo := newMemRepo()
	repo.data[StorageKey] = []byte("null")

	m, err := NewManager(context.Background(), repo)
	require.NoError(t, err)
	assert.Nil(t, m.Current())
}

func TestNewManager_StoreFailure(t *testing.T) {
	repo := newMemRepo()
	repo.getErr = errors.New("disk gone")

	_, err := NewManager(context.Background(), repo)
	assert.Error(t, err)
}

func TestManager_SetPersistsAndSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	m, err := NewManager(ctx, repo)
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, sampleSession()))

	m2, err := NewManager(ctx, repo)
	require.NoError(t, err)
	require.NotNil(t, m2.Current())
	assert.Equal(t, "access-1", m2.AccessToken())
}

func TestManager_SetKeepsMemoryWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	m, err := NewManager(ctx, repo)
	require.NoError(t, err)

	repo.setErr = errors.New("read-only")
	assert.Error(t, m.Set(ctx, sampleSession()))
	assert.Equal(t, "access-1", m.AccessToken())
}

func TestManager_UpdateTokens(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	m, err := NewManager(ctx, repo)
	require.NoError(t, err)

	// no session: no-op
	require.NoError(t, m.UpdateTokens(ctx, model.TokenPair{AccessToken: "x", RefreshToken: "y"}))
	assert.Nil(t, m.Current())
	assert.Empty(t, repo.data)

	require.NoError(t, m.Set(ctx, sampleSession()))
	require.NoError(t, m.UpdateTokens(ctx, model.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}))

	cur := m.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "user-1", cur.User.ID)
	assert.Equal(t, "access-2", cur.Tokens.AccessToken)

	var stored Session
	require.NoError(t, json.Unmarshal(repo.data[StorageKey], &stored))
	assert.Equal(t, "refresh-2", stored.Tokens.RefreshToken)
}

func TestManager_Clear(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	m, err := NewManager(ctx, repo)
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, sampleSession()))

	require.NoError(t, m.Clear(ctx))
	assert.Nil(t, m.Current())
	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, repo.data)
}

func TestManager_CurrentReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(ctx, newMemRepo())
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, sampleSession()))

	cur := m.Current()
	cur.Tokens.AccessToken = "tampered"
	assert.Equal(t, "access-1", m.AccessToken())
}

func TestManager_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	m, err := NewManager(ctx, s)
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, sampleSession()))

	raw, err := s.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":{"id":"user-1","email":"a@example.com"},"tokens":{"accessToken":"access-1","refreshToken":"refresh-1"}}`, string(raw))
}
