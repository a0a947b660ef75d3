package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slidecraft/slides-cli/internal/storage"
)

func newTestStore(t *testing.T) (*TokenStore, *storage.FileStore, *storage.FileStore) {
	t.Helper()
	t.Setenv("SLIDES_TOKEN", "")
	t.Setenv("SLIDES_ADMIN_TOKEN", "")
	dir := t.TempDir()
	tokens := storage.NewFileStore(dir, storage.CredentialsFile)
	sessions := storage.NewFileStore(dir, storage.SessionsFile)
	return NewTokenStore(tokens, sessions), tokens, sessions
}

func TestPrincipalKeys(t *testing.T) {
	assert.Equal(t, "slides_X-USER-TOKEN", User.TokenKey(DefaultKeyPrefix))
	assert.Equal(t, "slides_X-ADMIN-TOKEN", Admin.TokenKey(DefaultKeyPrefix))
	assert.Equal(t, "X-USER-TOKEN", User.TokenKey(""))
	assert.Equal(t, "USER_INFO_CACHE_KEY", User.SessionKey())
	assert.Equal(t, "ADMIN_INFO_CACHE_KEY", Admin.SessionKey())
}

func TestTokenStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	assert.Equal(t, "", store.Get(ctx, User))

	require.NoError(t, store.Set(ctx, User, "user-token"))
	require.NoError(t, store.Set(ctx, Admin, "Bearer admin-token"))

	assert.Equal(t, "user-token", store.Get(ctx, User))
	assert.Equal(t, "Bearer admin-token", store.Get(ctx, Admin))

	require.NoError(t, store.Set(ctx, User, "replaced"))
	assert.Equal(t, "replaced", store.Get(ctx, User))
}

func TestTokenStoreRemoveCascadesToSession(t *testing.T) {
	ctx := context.Background()
	store, _, sessions := newTestStore(t)

	require.NoError(t, store.Set(ctx, User, "user-token"))
	require.NoError(t, store.Set(ctx, Admin, "admin-token"))
	require.NoError(t, sessions.Set(ctx, UserSessionKey, []byte(`{"expire":9999999999999,"data":{"id":1}}`)))
	require.NoError(t, sessions.Set(ctx, AdminSessionKey, []byte(`{"expire":9999999999999,"data":{"id":2}}`)))

	require.NoError(t, store.Remove(ctx, User))

	assert.Equal(t, "", store.Get(ctx, User))
	_, found, err := sessions.Get(ctx, UserSessionKey)
	require.NoError(t, err)
	assert.False(t, found, "user session should be gone")

	// The admin principal is untouched.
	assert.Equal(t, "admin-token", store.Get(ctx, Admin))
	_, found, err = sessions.Get(ctx, AdminSessionKey)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestTokenStoreRemoveMissing(t *testing.T) {
	store, _, _ := newTestStore(t)
	assert.NoError(t, store.Remove(context.Background(), Admin))
}

func TestTokenStoreEnvOverride(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)
	require.NoError(t, store.Set(ctx, User, "stored"))

	t.Setenv("SLIDES_TOKEN", "from-env")
	assert.Equal(t, "from-env", store.Get(ctx, User))
	assert.Equal(t, "", store.Get(ctx, Admin))
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStore) Set(context.Context, string, []byte) error         { return f.err }
func (f failingStore) Remove(context.Context, string) error              { return f.err }

func TestTokenStoreGetNeverFails(t *testing.T) {
	t.Setenv("SLIDES_TOKEN", "")
	boom := errors.New("boom")
	store := NewTokenStore(failingStore{boom}, failingStore{boom})

	assert.Equal(t, "", store.Get(context.Background(), User))
}

func TestTokenStoreRemoveJoinsErrors(t *testing.T) {
	tokenErr := errors.New("token backend down")
	sessionErr := errors.New("session backend down")
	store := NewTokenStore(failingStore{tokenErr}, failingStore{sessionErr})

	err := store.Remove(context.Background(), User)
	require.Error(t, err)
	assert.ErrorIs(t, err, tokenErr)
	assert.ErrorIs(t, err, sessionErr)
}

func TestAuthorization(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	assert.Equal(t, "", store.Authorization(ctx, User))

	require.NoError(t, store.Set(ctx, User, "abc"))
	assert.Equal(t, "Bearer abc", store.Authorization(ctx, User))

	require.NoError(t, store.Set(ctx, Admin, "Bearer xyz"))
	assert.Equal(t, "Bearer xyz", store.Authorization(ctx, Admin))
}

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()
	assert.Len(t, id, SessionIDLength)
	assert.Regexp(t, `^[0-9a-z]+$`, id)
	assert.NotEqual(t, id, NewSessionID())
}
