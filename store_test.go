package drift_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/drift"
	_ "github.com/meigma/drift/backend/file"
	"github.com/meigma/drift/crypt"
)

func openStore(t *testing.T, opts ...drift.Option) (*drift.Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := drift.Open(context.Background(), "file://"+dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func writeLocal(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "local")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func ageEncrypter(t *testing.T) crypt.Encrypter {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	return crypt.NewAge([]age.Recipient{id.Recipient()}, []age.Identity{id})
}

func fullVolume(ts int64, vol int) drift.Entry {
	return drift.Entry{Type: drift.Full, Time: ts, Volume: vol}
}

func TestPutGetPlain(t *testing.T) {
	s, dir := openStore(t)
	ctx := context.Background()

	name, err := s.Put(ctx, writeLocal(t, "volume data"), fullVolume(100, 1))
	require.NoError(t, err)
	assert.Equal(t, "drift-full.19700101T000140Z.vol1.difftar", name)

	// The remote object is the plain payload.
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "volume data", string(data))

	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, s.Get(ctx, fullVolume(100, 1), out))
	data, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "volume data", string(data))
}

func TestPutGetSealed(t *testing.T) {
	s, dir := openStore(t, drift.WithCompression(true), drift.WithEncrypter(ageEncrypter(t)))
	ctx := context.Background()

	payload := strings.Repeat("compressible volume data ", 1000)
	name, err := s.Put(ctx, writeLocal(t, payload), fullVolume(100, 1))
	require.NoError(t, err)
	assert.Equal(t, "drift-full.19700101T000140Z.vol1.difftar.gz.gpg", name)

	// The remote object is neither the payload nor plain gzip.
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "compressible")
	assert.True(t, strings.HasPrefix(string(data), "age-encryption.org/"))

	out := filepath.Join(t.TempDir(), "out")
	entry := fullVolume(100, 1)
	entry.Compressed = true
	entry.Encrypted = true
	require.NoError(t, s.Get(ctx, entry, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

func TestPutForcesPipelineFlags(t *testing.T) {
	s, _ := openStore(t, drift.WithCompression(true))

	// Entry claims encrypted, store has no encrypter. The name follows
	// the store's pipeline.
	e := fullVolume(100, 1)
	e.Encrypted = true
	name, err := s.Put(context.Background(), writeLocal(t, "x"), e)
	require.NoError(t, err)
	assert.Equal(t, "drift-full.19700101T000140Z.vol1.difftar.gz", name)
}

func TestGetEncryptedWithoutEncrypterFails(t *testing.T) {
	enc := ageEncrypter(t)
	dir := t.TempDir()
	ctx := context.Background()

	sealed, err := drift.Open(ctx, "file://"+dir, drift.WithEncrypter(enc))
	require.NoError(t, err)
	_, err = sealed.Put(ctx, writeLocal(t, "secret"), fullVolume(100, 1))
	require.NoError(t, err)
	require.NoError(t, sealed.Close())

	plain, err := drift.Open(ctx, "file://"+dir)
	require.NoError(t, err)
	defer plain.Close()

	objects, err := plain.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)

	err = plain.Get(ctx, objects[0].Entry, filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no encrypter")
}

func TestEntriesSkipsForeignNames(t *testing.T) {
	s, dir := openStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, writeLocal(t, "x"), fullVolume(100, 1))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("hi"), 0o644))

	objects, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, drift.Full, objects[0].Entry.Type)
	assert.Equal(t, 1, objects[0].Entry.Volume)
}

func TestQueryAndDelete(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, writeLocal(t, "12345"), fullVolume(100, 1))
	require.NoError(t, err)

	size, err := s.Query(ctx, fullVolume(100, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	require.NoError(t, s.Delete(ctx, fullVolume(100, 1)))
	size, err = s.Query(ctx, fullVolume(100, 1))
	require.NoError(t, err)
	assert.Equal(t, drift.SizeMissing, size)

	// Deleting again is still a success.
	require.NoError(t, s.Delete(ctx, fullVolume(100, 1)))
}

func TestPutInvalidEntry(t *testing.T) {
	s, _ := openStore(t)
	_, err := s.Put(context.Background(), writeLocal(t, "x"), drift.Entry{Type: drift.Full, Time: 100})
	assert.ErrorIs(t, err, drift.ErrInvalidEntry)
}
