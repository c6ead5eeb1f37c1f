package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStoreContract runs the behaviour every backend must share.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()

	t.Run("absent key reports not found", func(t *testing.T) {
		val, found, err := s.Get("missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, val)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(KeyToken, "abc.def.ghi"))

		val, found, err := s.Get(KeyToken)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "abc.def.ghi", val)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, s.Set(KeyPrincipal, `{"id":"1"}`))
		require.NoError(t, s.Set(KeyPrincipal, `{"id":"2"}`))

		val, _, err := s.Get(KeyPrincipal)
		require.NoError(t, err)
		assert.Equal(t, `{"id":"2"}`, val)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Set("temp", "v"))
		require.NoError(t, s.Delete("temp"))
		require.NoError(t, s.Delete("temp"))

		_, found, err := s.Get("temp")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	t.Run("contract", func(t *testing.T) {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		testStoreContract(t, s)
	})

	t.Run("creates directory with correct permissions", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "state")

		_, err := NewFileStore(dir)
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("writes state file with 0600 permissions", func(t *testing.T) {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, s.Set(KeyToken, "secret"))

		info, err := os.Stat(s.Path())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		_, err = os.Stat(s.Path() + ".tmp")
		assert.True(t, os.IsNotExist(err), "temp file is renamed away")
	})

	t.Run("survives reopen", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore(dir)
		require.NoError(t, err)
		require.NoError(t, s.Set(KeyToken, "persisted"))

		reopened, err := NewFileStore(dir)
		require.NoError(t, err)

		val, found, err := reopened.Get(KeyToken)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "persisted", val)
	})

	t.Run("malformed file reads as empty", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, stateFileName), []byte("{not json"), 0600))

		s, err := NewFileStore(dir)
		require.NoError(t, err)

		_, found, err := s.Get(KeyToken)
		require.NoError(t, err)
		assert.False(t, found)

		// and a write repairs it
		require.NoError(t, s.Set(KeyToken, "fresh"))
		val, found, err := s.Get(KeyToken)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "fresh", val)
	})

	t.Run("uses default directory when baseDir is empty", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		s, err := NewFileStore("")
		require.NoError(t, err)
		assert.Contains(t, s.Path(), ".storesync")
	})
}

func TestSQLiteStore(t *testing.T) {
	t.Run("contract in memory", func(t *testing.T) {
		s, err := NewSQLiteStore(context.Background(), ":memory:")
		require.NoError(t, err)
		defer s.Close()

		testStoreContract(t, s)
	})

	t.Run("survives reopen", func(t *testing.T) {
		path := SQLitePath(t.TempDir())

		s, err := NewSQLiteStore(context.Background(), path)
		require.NoError(t, err)
		require.NoError(t, s.Set(KeyToken, "persisted"))
		require.NoError(t, s.Close())

		reopened, err := NewSQLiteStore(context.Background(), path)
		require.NoError(t, err)
		defer reopened.Close()

		val, found, err := reopened.Get(KeyToken)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "persisted", val)
	})

	t.Run("closed store returns ErrClosed", func(t *testing.T) {
		s, err := NewSQLiteStore(context.Background(), "")
		require.NoError(t, err)
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		_, _, err = s.Get(KeyToken)
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, s.Set(KeyToken, "x"), ErrClosed)
		assert.ErrorIs(t, s.Delete(KeyToken), ErrClosed)
	})
}
