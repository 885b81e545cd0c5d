package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "tasks"))
	require.NoError(t, err)

	n, err := store.Save(ctx, "task_1_abc.pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	rc, err := store.Open(ctx, "task_1_abc.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	objects, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "task_1_abc.pdf", objects[0].Name)

	require.NoError(t, store.Delete(ctx, "task_1_abc.pdf"))
	assert.ErrorIs(t, store.Delete(ctx, "task_1_abc.pdf"), ErrNotFound)

	_, err = store.Open(ctx, "task_1_abc.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_RejectsPathNames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../escape.txt", "a/b.txt", `a\b.txt`} {
		_, err := store.Save(ctx, name, strings.NewReader("x"))
		assert.Error(t, err, name)
	}

	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStore_ListSkipsTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, tempPrefix+"123"), []byte("partial"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	objects, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, objects)
}
