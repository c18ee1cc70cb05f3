package badger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
	assert.DirExists(t, tmpDir)
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

	_, err := OpenBackend(tmpFile, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestBackend_CountAndDeletePrefix(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	keys := []string{"a:1", "a:2", "a:3", "b:1"}
	require.NoError(t, backend.WithTx(func(tx *badger.Txn) error {
		for _, k := range keys {
			if err := tx.Set([]byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true))

	count, err := backend.countPrefix([]byte("a:"))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, backend.deletePrefix([]byte("a:")))

	count, err = backend.countPrefix([]byte("a:"))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = backend.countPrefix([]byte("b:"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Nothing left to delete is not an error.
	require.NoError(t, backend.deletePrefix([]byte("a:")))
}
