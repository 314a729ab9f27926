package context

import (
	stdctx "context"
	"testing"

	"github.com/agentdeck/agentctl/internal/auth"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("AGENTCTL_CONTEXT", "")
	return NewStore(afero.NewMemMapFs(), "/home/test/.agentctl/config")
}

func TestLoadMissingFile(t *testing.T) {
	store := newTestStore(t)

	config, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, ConfigAPIVersion, config.APIVersion)
	assert.Equal(t, ConfigKind, config.Kind)
	assert.Empty(t, config.Contexts)
}

func TestLoginAndToken(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Login("prod", "https://api.example.com", "tok-1"))

	ctx, name, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, "prod", name)
	assert.Equal(t, "https://api.example.com", ctx.APIURL)

	token, err := store.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	// Re-login keeps the API URL when none is given.
	require.NoError(t, store.Login("prod", "", "tok-2"))
	ctx, _, err = store.Current()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", ctx.APIURL)
	token, err = store.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)

	info, err := store.fs.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())
}

func TestLogoutClearsToken(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Login("dev", "http://localhost:8000/api", "tok"))
	require.NoError(t, store.Logout())

	token, err := store.Token()
	require.NoError(t, err)
	assert.Empty(t, token)

	_, err = store.TokenProvider().Token(stdctx.Background())
	assert.ErrorIs(t, err, auth.ErrNoCredential)
}

func TestCurrentContextOverride(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Login("a", "http://a", "ta"))
	require.NoError(t, store.Login("b", "http://b", "tb"))

	_, name, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	t.Setenv("AGENTCTL_CONTEXT", "a")
	token, err := store.Token()
	require.NoError(t, err)
	assert.Equal(t, "ta", token)

	t.Setenv("AGENTCTL_CONTEXT", "missing")
	_, _, err = store.Current()
	assert.Error(t, err)
}

func TestUseUnknownContext(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Use("nope"))

	require.NoError(t, store.Login("a", "http://a", "ta"))
	require.NoError(t, store.Login("b", "http://b", "tb"))
	require.NoError(t, store.Use("a"))

	_, name, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, "a", name)
}

func TestTokenWithoutContext(t *testing.T) {
	store := newTestStore(t)
	token, err := store.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
}
