package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVolume(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vol")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func buildManifest(t *testing.T, contents ...string) (*Manifest, []string) {
	t.Helper()
	m := &Manifest{Time: 1029913200, StartTime: 1029826800, Hostname: "host1"}
	paths := make([]string, 0, len(contents))
	for i, c := range contents {
		p := writeVolume(t, c)
		require.NoError(t, m.AddVolumeFile(i+1, p))
		paths = append(paths, p)
	}
	return m, paths
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m, _ := buildManifest(t, "volume one", "volume two")

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Time, got.Time)
	assert.Equal(t, m.StartTime, got.StartTime)
	assert.Equal(t, m.Hostname, got.Hostname)
	assert.Equal(t, m.Volumes, got.Volumes)
}

func TestVerifyFile(t *testing.T) {
	m, paths := buildManifest(t, "volume one")
	assert.NoError(t, m.VerifyFile(1, paths[0]))
}

func TestVerifyFileDetectsCorruption(t *testing.T) {
	m, paths := buildManifest(t, "volume one")
	require.NoError(t, os.WriteFile(paths[0], []byte("volume 0ne"), 0o644))

	err := m.VerifyFile(1, paths[0])
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestVerifyFileDetectsTruncation(t *testing.T) {
	m, paths := buildManifest(t, "volume one")
	require.NoError(t, os.WriteFile(paths[0], []byte("volume"), 0o644))

	err := m.VerifyFile(1, paths[0])
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestVerifyUnknownVolume(t *testing.T) {
	m, paths := buildManifest(t, "volume one")
	err := m.VerifyFile(7, paths[0])
	assert.ErrorIs(t, err, ErrUnknownVolume)
}

func TestValidateRejectsGaps(t *testing.T) {
	m := &Manifest{Volumes: []Volume{
		{Number: 1, Size: 1, Digest: digest.FromString("a")},
		{Number: 3, Size: 1, Digest: digest.FromString("b")},
	}}
	assert.ErrorIs(t, m.Validate(), ErrInvalidManifest)
}

func TestValidateRejectsDuplicates(t *testing.T) {
	m := &Manifest{Volumes: []Volume{
		{Number: 1, Size: 1, Digest: digest.FromString("a")},
		{Number: 1, Size: 1, Digest: digest.FromString("b")},
	}}
	assert.ErrorIs(t, m.Validate(), ErrInvalidManifest)
}

func TestValidateRejectsBadDigest(t *testing.T) {
	m := &Manifest{Volumes: []Volume{
		{Number: 1, Size: 1, Digest: digest.Digest("not-a-digest")},
	}}
	assert.ErrorIs(t, m.Validate(), ErrInvalidManifest)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("{not json")))
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestEncodeSortsVolumes(t *testing.T) {
	p1 := writeVolume(t, "one")
	p2 := writeVolume(t, "two")
	m := &Manifest{Time: 1}
	require.NoError(t, m.AddVolumeFile(2, p2))
	require.NoError(t, m.AddVolumeFile(1, p1))

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Volumes[0].Number)
	assert.Equal(t, 2, got.Volumes[1].Number)
}
