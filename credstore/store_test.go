package credstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/createathon/client-go/domain"
)

func TestMemStoreRoundTrip(t *testing.T) {
	store := NewMemStore()

	assert.Empty(t, store.Get(domain.KeyAccessToken))

	store.Set(domain.KeyAccessToken, "abc")
	assert.Equal(t, "abc", store.Get(domain.KeyAccessToken))

	store.Remove(domain.KeyAccessToken)
	assert.Empty(t, store.Get(domain.KeyAccessToken))

	// Removing an absent key is a no-op.
	store.Remove("never-set")
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	store.Set(domain.KeyAccessToken, "abc")
	store.Set(domain.KeyRefreshToken, "def")
	store.Remove(domain.KeyRefreshToken)

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", reopened.Get(domain.KeyAccessToken))
	assert.Empty(t, reopened.Get(domain.KeyRefreshToken))
}

func TestFileStoreFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	store.Set(domain.KeyAccessToken, "abc")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Empty(t, store.Get(domain.KeyAccessToken))
}

func TestOpenFallsBackToMemStore(t *testing.T) {
	// A regular file where a directory is needed makes the location
	// unusable; Open must degrade instead of failing.
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	store := Open(filepath.Join(blocker, "sub", "credentials.json"))
	require.NotNil(t, store)

	// Degraded persistence still behaves like a store within the process.
	store.Set(domain.KeyAccessToken, "abc")
	assert.Equal(t, "abc", store.Get(domain.KeyAccessToken))
	_, isMem := store.(*MemStore)
	assert.True(t, isMem)
}
