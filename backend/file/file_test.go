package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/drift/backend"
)

func newTestBackend(t *testing.T) (backend.Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := backend.Open(context.Background(), "file://"+dir)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b, dir
}

func writeLocal(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "local")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPutGetRoundTrip(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, writeLocal(t, "payload"), "obj"))

	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, b.Get(ctx, "obj", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestPutOverwrites(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, writeLocal(t, "first"), "obj"))
	require.NoError(t, b.Put(ctx, writeLocal(t, "second"), "obj"))

	size, err := b.Query(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, int64(len("second")), size)
}

func TestPutLeavesNoTempOnSuccess(t *testing.T) {
	b, dir := newTestBackend(t)
	require.NoError(t, b.Put(context.Background(), writeLocal(t, "x"), "obj"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "obj", entries[0].Name())
}

func TestListSkipsDirectories(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, writeLocal(t, "a"), "one"))
	require.NoError(t, b.Put(ctx, writeLocal(t, "b"), "two"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	names, err := b.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, names)
}

func TestGetMissingIsNotFound(t *testing.T) {
	b, _ := newTestBackend(t)
	err := b.Get(context.Background(), "nope", filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	assert.True(t, backend.IsNotFound(err))
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	b, _ := newTestBackend(t)
	err := b.Delete(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, backend.IsNotFound(err))
}

func TestQueryMissingIsNotFound(t *testing.T) {
	b, _ := newTestBackend(t)
	_, err := b.Query(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, backend.IsNotFound(err))
}

func TestDeleteThenList(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, writeLocal(t, "x"), "obj"))
	require.NoError(t, b.Delete(ctx, "obj"))

	names, err := b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestClosedBackendRefusesOps(t *testing.T) {
	b, _ := newTestBackend(t)
	require.NoError(t, b.Close())

	_, err := b.List(context.Background())
	require.Error(t, err)
	assert.Equal(t, backend.KindFatal, backend.KindOf(err))

	require.NoError(t, b.Reset(context.Background()))
	_, err = b.List(context.Background())
	assert.NoError(t, err)
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	b, err := backend.Open(context.Background(), "file://"+dir)
	require.NoError(t, err)
	defer b.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEmptyPathIsConfigError(t *testing.T) {
	_, err := backend.Open(context.Background(), "file://")
	require.Error(t, err)
	assert.Equal(t, backend.KindConfig, backend.KindOf(err))
}
