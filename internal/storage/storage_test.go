package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func implementations(t *testing.T) map[string]Storage {
	t.Helper()
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	return map[string]Storage{
		"memory": NewMemory(),
		"local":  local,
	}
}

func TestWriteAndRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, store := range implementations(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.NoError(t, store.Write(ctx, "a/b/c.txt", []byte("hello")))
			data, err := store.Read(ctx, "a/b/c.txt")
			require.NoError(t, err)
			assert.Equal(t, "hello", string(data))

			size, err := store.Len(ctx, "a/b/c.txt")
			require.NoError(t, err)
			assert.Equal(t, int64(5), size)
		})
	}
}

func TestReadMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, store := range implementations(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := store.Read(ctx, "missing.txt")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestReadRange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, store := range implementations(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.NoError(t, store.Write(ctx, "range.bin", []byte("0123456789")))

			data, err := store.ReadRange(ctx, "range.bin", 2, 5)
			require.NoError(t, err)
			assert.Equal(t, "234", string(data))

			// requesting past EOF returns fewer bytes than asked
			data, err = store.ReadRange(ctx, "range.bin", 8, 100)
			require.NoError(t, err)
			assert.Equal(t, "89", string(data))
		})
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, store := range implementations(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.NoError(t, store.Write(ctx, "gone.txt", []byte("x")))
			require.NoError(t, store.Remove(ctx, "gone.txt"))
			require.NoError(t, store.Remove(ctx, "gone.txt"))

			exists, err := store.Exists(ctx, "gone.txt")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestListDir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, store := range implementations(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.NoError(t, store.Write(ctx, "dir/one.txt", []byte("1")))
			require.NoError(t, store.Write(ctx, "dir/two.txt", []byte("22")))

			entries, err := store.ListDir(ctx, "dir")
			require.NoError(t, err)
			names := map[string]bool{}
			for _, e := range entries {
				names[e.Name] = true
			}
			assert.True(t, names["one.txt"])
			assert.True(t, names["two.txt"])
		})
	}
}

func TestLocal_WriteIsAtomic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocal(root)
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, "atomic.txt", []byte("v1")))

	// no stray -tmp file should remain in the target directory after a
	// successful write
	entries, err := os.ReadDir(filepath.Join(root, "."))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "-tmp")
	}
}

func TestLocal_RejectsPathEscape(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
