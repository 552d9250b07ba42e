package localstore

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_RoundTripAndDelete(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "state", "scribe.db"))

	_, err := s.Get(AuthStateKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(AuthStateKey, []byte(`{"a":1}`)))
	got, err := s.Get(AuthStateKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	require.NoError(t, s.Set(AuthStateKey, []byte(`{"a":2}`)))
	got, err = s.Get(AuthStateKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got))

	require.NoError(t, s.Delete(AuthStateKey))
	require.NoError(t, s.Delete(AuthStateKey), "second delete is a no-op")
	_, err = s.Get(AuthStateKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.db")

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ProviderSessionKey, []byte("tokens")))
	require.NoError(t, first.Close())

	second := openTestStore(t, path)
	got, err := second.Get(ProviderSessionKey)
	require.NoError(t, err)
	assert.Equal(t, "tokens", string(got))
}

func TestSQLiteStore_OwnerOnlyPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := filepath.Join(t.TempDir(), "state")
	path := filepath.Join(dir, "scribe.db")
	s := openTestStore(t, path)
	require.NoError(t, s.Set(AuthStateKey, []byte("x")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	info, err = os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestMemory_CopiesValues(t *testing.T) {
	m := NewMemory()
	v := []byte("abc")
	require.NoError(t, m.Set("k", v))
	v[0] = 'z'
	got, err := m.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
