package lfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeObject(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

func TestLocalStoreStatus(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	writeObject(t, store.Path(testOid), 10)

	tests := []struct {
		name string
		ptr  *Pointer
		want ObjectStatus
	}{
		{name: "present", ptr: NewPointer(testOid, 10), want: ObjectPresent},
		{name: "size mismatch", ptr: NewPointer(testOid, 11), want: ObjectSizeMismatch},
		{name: "missing", ptr: NewPointer("a"+testOid[1:], 10), want: ObjectMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Status(tt.ptr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalStoreFor(t *testing.T) {
	t.Run("working copy", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
		assert.Equal(t,
			filepath.Join(dir, ".git", "lfs", "objects", "e3", "b0", testOid),
			LocalStoreFor(dir).Path(testOid))
	})

	t.Run("bare", func(t *testing.T) {
		dir := t.TempDir()
		assert.Equal(t,
			filepath.Join(dir, "lfs", "objects", "e3", "b0", testOid),
			LocalStoreFor(dir).Path(testOid))
	})
}

func TestTransformKey(t *testing.T) {
	assert.Equal(t, "abc", transformKey("abc"))
	assert.Equal(t, filepath.Join("ab", "cd", "abcdef"), transformKey("abcdef"))
}
