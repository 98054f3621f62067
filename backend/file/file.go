// Package file implements the local-directory transport, registered
// under the "file" scheme. URLs look like file://relative/dir or
// file:///absolute/dir.
//
// It is the reference Backend implementation: every capability is a
// direct filesystem operation, uploads land under a temporary name and
// are renamed into place, and the session is the directory handle
// itself.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/meigma/drift/backend"
)

func init() {
	backend.Register("file", false, New)
}

// Backend stores objects as plain files in one directory.
type Backend struct {
	dir       string
	connected bool
}

// New creates the target directory if needed and returns a connected
// backend. An empty path is a configuration error.
func New(ctx context.Context, u *backend.ParsedURL) (backend.Backend, error) {
	if u.Path == "" {
		return nil, backend.Errf(backend.KindConfig, "open", u.String(), "file URL needs a directory path")
	}
	b := &Backend{dir: filepath.FromSlash(u.Path)}
	if err := b.Reset(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Put copies the local file into the directory under remoteName. The
// copy lands under a temporary name first and is renamed into place, so
// a crashed upload never leaves a complete-looking object behind.
func (b *Backend) Put(ctx context.Context, localPath, remoteName string) error {
	if err := b.ready("put", remoteName); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return classify("put", remoteName, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(b.dir, ".upload-*")
	if err != nil {
		return classify("put", remoteName, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return classify("put", remoteName, err)
	}
	if err := tmp.Close(); err != nil {
		return classify("put", remoteName, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(b.dir, remoteName)); err != nil {
		return classify("put", remoteName, err)
	}
	return nil
}

// Get copies the named object to localPath, truncating any previous
// content.
func (b *Backend) Get(ctx context.Context, remoteName, localPath string) error {
	if err := b.ready("get", remoteName); err != nil {
		return err
	}

	src, err := os.Open(filepath.Join(b.dir, remoteName))
	if err != nil {
		return classify("get", remoteName, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return classify("get", remoteName, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return classify("get", remoteName, err)
	}
	return classify("get", remoteName, dst.Close())
}

// List returns the names of the regular files in the directory.
func (b *Backend) List(ctx context.Context) ([]string, error) {
	if err := b.ready("list", ""); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, classify("list", "", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Delete removes the named object.
func (b *Backend) Delete(ctx context.Context, remoteName string) error {
	if err := b.ready("delete", remoteName); err != nil {
		return err
	}
	return classify("delete", remoteName, os.Remove(filepath.Join(b.dir, remoteName)))
}

// Query returns the size of the named object.
func (b *Backend) Query(ctx context.Context, remoteName string) (int64, error) {
	if err := b.ready("query", remoteName); err != nil {
		return 0, err
	}
	info, err := os.Stat(filepath.Join(b.dir, remoteName))
	if err != nil {
		return 0, classify("query", remoteName, err)
	}
	return info.Size(), nil
}

// Reset re-ensures the directory exists. For a local directory there is
// no connection to rebuild, so this doubles as the connect step.
func (b *Backend) Reset(ctx context.Context) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return backend.Wrap(backend.KindConfig, "reset", b.dir, err)
	}
	b.connected = true
	return nil
}

// Close marks the backend unusable until the next Reset.
func (b *Backend) Close() error {
	b.connected = false
	return nil
}

func (b *Backend) ready(op, target string) error {
	if !b.connected {
		return backend.Errf(backend.KindFatal, op, target, "backend is closed")
	}
	return nil
}

// classify maps filesystem errors onto the backend taxonomy: a missing
// file is KindNotFound, permission and disk-space problems are fatal,
// anything else is left transient.
func classify(op, target string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return backend.Wrap(backend.KindNotFound, op, target, err)
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.ENOSPC):
		return backend.Wrap(backend.KindFatal, op, target, err)
	default:
		return backend.Wrap(backend.KindTransient, op, target, fmt.Errorf("filesystem: %w", err))
	}
}
