package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomically(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "data.bin")

	err := WriteFileAtomically(target, func(f *os.File) error {
		_, err := f.WriteString("first")
		return err
	})
	require.NoError(t, err)

	err = WriteFileAtomically(target, func(f *os.File) error {
		_, _ = f.WriteString("partial")
		return errors.New("encoder broke")
	})
	require.Error(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data), "failed write must not touch the target")

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be cleaned up")
}

func TestLockExcludesTryLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	held, err := Lock(path, true)
	require.NoError(t, err)

	_, err = TryLock(path)
	assert.Error(t, err)

	require.NoError(t, held.Unlock())
	require.NoError(t, held.Unlock(), "second unlock is a no-op")

	again, err := TryLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}

func TestSharedLocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	a, err := Lock(path, false)
	require.NoError(t, err)
	b, err := Lock(path, false)
	require.NoError(t, err)

	require.NoError(t, a.Unlock())
	require.NoError(t, b.Unlock())
}
