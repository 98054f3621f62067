// Package manifest describes the contents of one backup set: the
// volumes it was split into, with their sizes and content digests. The
// manifest is uploaded alongside the volumes and consulted on restore
// to detect truncated or corrupted downloads.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/opencontainers/go-digest"
)

// Errors returned by manifest operations.
var (
	// ErrInvalidManifest is returned when a manifest fails validation.
	ErrInvalidManifest = errors.New("manifest: invalid manifest")

	// ErrDigestMismatch is returned when a volume's content does not
	// match the digest recorded for it.
	ErrDigestMismatch = errors.New("manifest: digest mismatch")

	// ErrUnknownVolume is returned when a volume number is not listed.
	ErrUnknownVolume = errors.New("manifest: unknown volume")
)

// Volume records one uploaded volume of a set.
type Volume struct {
	Number int           `json:"number"`
	Size   int64         `json:"size"`
	Digest digest.Digest `json:"digest"`
}

// Manifest lists the volumes of one backup set.
type Manifest struct {
	// Time is the set's backup time.
	Time int64 `json:"time"`

	// StartTime is the base time for incremental sets, equal to Time
	// for full sets.
	StartTime int64 `json:"start_time"`

	// Hostname records where the backup was taken.
	Hostname string `json:"hostname,omitempty"`

	Volumes []Volume `json:"volumes"`
}

// AddVolumeFile digests the file and appends it as the given volume
// number.
func (m *Manifest) AddVolumeFile(number int, path string) error {
	dgst, size, err := DigestFile(path)
	if err != nil {
		return err
	}
	m.Volumes = append(m.Volumes, Volume{Number: number, Size: size, Digest: dgst})
	return nil
}

// Volume returns the entry for the given volume number.
func (m *Manifest) Volume(number int) (Volume, error) {
	for _, v := range m.Volumes {
		if v.Number == number {
			return v, nil
		}
	}
	return Volume{}, fmt.Errorf("%w: %d", ErrUnknownVolume, number)
}

// Validate checks that volume numbers are unique and contiguous from 1
// and that every entry carries a well-formed digest.
func (m *Manifest) Validate() error {
	seen := make(map[int]bool, len(m.Volumes))
	for _, v := range m.Volumes {
		if v.Number < 1 {
			return fmt.Errorf("%w: volume number %d", ErrInvalidManifest, v.Number)
		}
		if seen[v.Number] {
			return fmt.Errorf("%w: duplicate volume %d", ErrInvalidManifest, v.Number)
		}
		seen[v.Number] = true
		if v.Size < 0 {
			return fmt.Errorf("%w: volume %d has negative size", ErrInvalidManifest, v.Number)
		}
		if err := v.Digest.Validate(); err != nil {
			return fmt.Errorf("%w: volume %d: %v", ErrInvalidManifest, v.Number, err)
		}
	}
	for n := 1; n <= len(m.Volumes); n++ {
		if !seen[n] {
			return fmt.Errorf("%w: missing volume %d", ErrInvalidManifest, n)
		}
	}
	return nil
}

// VerifyFile checks a downloaded volume against its recorded size and
// digest.
func (m *Manifest) VerifyFile(number int, path string) error {
	want, err := m.Volume(number)
	if err != nil {
		return err
	}
	got, size, err := DigestFile(path)
	if err != nil {
		return err
	}
	if size != want.Size {
		return fmt.Errorf("%w: volume %d size %d, want %d", ErrDigestMismatch, number, size, want.Size)
	}
	if got != want.Digest {
		return fmt.Errorf("%w: volume %d", ErrDigestMismatch, number)
	}
	return nil
}

// Encode writes the manifest as JSON with volumes in number order.
func (m *Manifest) Encode(w io.Writer) error {
	if err := m.Validate(); err != nil {
		return err
	}
	sort.Slice(m.Volumes, func(i, j int) bool {
		return m.Volumes[i].Number < m.Volumes[j].Number
	})
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// Decode reads and validates a manifest.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// DigestFile returns the canonical digest and size of a file.
func DigestFile(path string) (digest.Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	digester := digest.Canonical.Digester()
	size, err := io.Copy(digester.Hash(), f)
	if err != nil {
		return "", 0, err
	}
	return digester.Digest(), size, nil
}
