// Package oci implements the OCI registry transport, registered under
// the "oci" scheme ("oci+http" for registries without TLS). URLs name
// the registry host and repository: oci://registry.example.com/backups.
//
// Each remote file is stored as a single-layer artifact whose manifest
// is tagged with the file name. Archive names are tag-safe by
// construction, so the name maps onto the tag unchanged.
package oci

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/errcode"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/meigma/drift/backend"
)

func init() {
	backend.Register("oci", true, factory(false))
	backend.Register("oci+http", true, factory(true))
}

const layerMediaType = "application/octet-stream"

// Backend stores objects as tagged single-layer artifacts in one
// repository.
type Backend struct {
	ref       string
	username  string
	password  string
	plainHTTP bool
	repo      *remote.Repository
	connected bool
}

func factory(plainHTTP bool) backend.Factory {
	return func(ctx context.Context, u *backend.ParsedURL) (backend.Backend, error) {
		return New(ctx, u, plainHTTP)
	}
}

// New connects to the repository named by the URL and pings the
// registry to verify it is reachable.
func New(ctx context.Context, u *backend.ParsedURL, plainHTTP bool) (backend.Backend, error) {
	if u.Path == "" || u.Path == "/" {
		return nil, backend.Errf(backend.KindConfig, "open", u.String(), "oci URL needs a repository path")
	}
	b := &Backend{
		ref:       u.HostPort() + u.Path,
		username:  u.Username,
		password:  u.Password,
		plainHTTP: plainHTTP,
	}
	if err := b.Reset(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Put uploads the local file as a single-layer artifact tagged with
// remoteName. Blob pushes that collide with existing content are fine,
// the registry stores by digest.
func (b *Backend) Put(ctx context.Context, localPath, remoteName string) error {
	if err := b.ready("put", remoteName); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return backend.Wrap(backend.KindFatal, "put", remoteName, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return backend.Wrap(backend.KindFatal, "put", remoteName, err)
	}
	dgst, err := digest.FromReader(f)
	if err != nil {
		return backend.Wrap(backend.KindFatal, "put", remoteName, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return backend.Wrap(backend.KindFatal, "put", remoteName, err)
	}

	layer := ocispec.Descriptor{
		MediaType: layerMediaType,
		Digest:    dgst,
		Size:      info.Size(),
		Annotations: map[string]string{
			ocispec.AnnotationTitle: remoteName,
		},
	}
	if err := b.repo.Push(ctx, layer, f); err != nil && !errors.Is(err, errdef.ErrAlreadyExists) {
		return classify("put", remoteName, err)
	}

	cfg := ocispec.DescriptorEmptyJSON
	if err := b.repo.Push(ctx, cfg, bytes.NewReader(cfg.Data)); err != nil && !errors.Is(err, errdef.ErrAlreadyExists) {
		return classify("put", remoteName, err)
	}

	manifest := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    cfg,
		Layers:    []ocispec.Descriptor{layer},
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return backend.Wrap(backend.KindFatal, "put", remoteName, err)
	}
	desc := ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageManifest,
		Digest:    digest.FromBytes(manifestJSON),
		Size:      int64(len(manifestJSON)),
	}
	if err := b.repo.PushReference(ctx, desc, bytes.NewReader(manifestJSON), remoteName); err != nil {
		return classify("put", remoteName, err)
	}
	return nil
}

// Get downloads the layer of the artifact tagged remoteName.
func (b *Backend) Get(ctx context.Context, remoteName, localPath string) error {
	if err := b.ready("get", remoteName); err != nil {
		return err
	}

	layer, err := b.layer(ctx, remoteName)
	if err != nil {
		return classify("get", remoteName, err)
	}
	rc, err := b.repo.Blobs().Fetch(ctx, layer)
	if err != nil {
		return classify("get", remoteName, err)
	}
	defer rc.Close()

	return writeFile("get", remoteName, localPath, rc, layer.Size)
}

// writeFile streams exactly size bytes from r into localPath. A clean
// EOF before size bytes means the registry sent a truncated blob, which
// must not pass as a successful download.
func writeFile(op, remoteName, localPath string, r io.Reader, size int64) error {
	dst, err := os.Create(localPath)
	if err != nil {
		return backend.Wrap(backend.KindFatal, op, remoteName, err)
	}
	n, err := io.Copy(dst, io.LimitReader(r, size))
	if err != nil {
		dst.Close()
		return backend.Wrap(backend.KindTransient, op, remoteName, err)
	}
	if n != size {
		dst.Close()
		return backend.Errf(backend.KindTransient, op, remoteName,
			"short read: got %d of %d bytes", n, size)
	}
	if err := dst.Close(); err != nil {
		return backend.Wrap(backend.KindFatal, op, remoteName, err)
	}
	return nil
}

// List returns the repository's tags.
func (b *Backend) List(ctx context.Context) ([]string, error) {
	if err := b.ready("list", ""); err != nil {
		return nil, err
	}

	var names []string
	err := b.repo.Tags(ctx, "", func(tags []string) error {
		names = append(names, tags...)
		return nil
	})
	if err != nil {
		return nil, classify("list", "", err)
	}
	return names, nil
}

// Delete removes the manifest tagged remoteName. The registry's
// garbage collector reclaims unreferenced layers.
func (b *Backend) Delete(ctx context.Context, remoteName string) error {
	if err := b.ready("delete", remoteName); err != nil {
		return err
	}

	desc, err := b.repo.Resolve(ctx, remoteName)
	if err != nil {
		return classify("delete", remoteName, err)
	}
	if err := b.repo.Manifests().Delete(ctx, desc); err != nil {
		return classify("delete", remoteName, err)
	}
	return nil
}

// Query returns the layer size of the artifact tagged remoteName.
func (b *Backend) Query(ctx context.Context, remoteName string) (int64, error) {
	if err := b.ready("query", remoteName); err != nil {
		return 0, err
	}

	layer, err := b.layer(ctx, remoteName)
	if err != nil {
		return 0, classify("query", remoteName, err)
	}
	return layer.Size, nil
}

// Reset rebuilds the repository handle and auth client, then pings the
// registry.
func (b *Backend) Reset(ctx context.Context) error {
	repo, err := remote.NewRepository(b.ref)
	if err != nil {
		return backend.Wrap(backend.KindConfig, "reset", b.ref, err)
	}
	repo.PlainHTTP = b.plainHTTP
	repo.Client = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(ctx context.Context, hostport string) (auth.Credential, error) {
			if b.username == "" {
				return auth.EmptyCredential, nil
			}
			return auth.Credential{Username: b.username, Password: b.password}, nil
		},
	}
	b.repo = repo
	b.connected = true

	reg, err := remote.NewRegistry(repo.Reference.Registry)
	if err != nil {
		b.connected = false
		return backend.Wrap(backend.KindConfig, "reset", b.ref, err)
	}
	reg.PlainHTTP = b.plainHTTP
	reg.Client = repo.Client
	if err := reg.Ping(ctx); err != nil {
		b.connected = false
		return classify("reset", b.ref, err)
	}
	return nil
}

// Close marks the backend unusable until the next Reset.
func (b *Backend) Close() error {
	b.connected = false
	b.repo = nil
	return nil
}

// layer resolves the tag and returns the artifact's single layer
// descriptor.
func (b *Backend) layer(ctx context.Context, remoteName string) (ocispec.Descriptor, error) {
	desc, rc, err := b.repo.FetchReference(ctx, remoteName)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	defer rc.Close()

	var manifest ocispec.Manifest
	if err := json.NewDecoder(io.LimitReader(rc, desc.Size)).Decode(&manifest); err != nil {
		return ocispec.Descriptor{}, backend.Errf(backend.KindProtocol, "resolve", remoteName, "bad manifest: %v", err)
	}
	if len(manifest.Layers) != 1 {
		return ocispec.Descriptor{}, backend.Errf(backend.KindProtocol, "resolve", remoteName, "artifact has %d layers, want 1", len(manifest.Layers))
	}
	return manifest.Layers[0], nil
}

func (b *Backend) ready(op, target string) error {
	if !b.connected {
		return backend.Errf(backend.KindFatal, op, target, "backend is closed")
	}
	return nil
}

// classify maps ORAS errors onto the backend taxonomy.
func classify(op, target string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errdef.ErrNotFound) {
		return backend.Wrap(backend.KindNotFound, op, target, err)
	}
	var errResp *errcode.ErrorResponse
	if errors.As(err, &errResp) {
		switch {
		case errResp.StatusCode == http.StatusNotFound:
			return backend.Wrap(backend.KindNotFound, op, target, err)
		case errResp.StatusCode == http.StatusUnauthorized || errResp.StatusCode == http.StatusForbidden:
			return backend.Wrap(backend.KindFatal, op, target, err)
		case errResp.StatusCode >= 400 && errResp.StatusCode < 500:
			return backend.Wrap(backend.KindProtocol, op, target, err)
		}
	}
	return backend.Wrap(backend.KindTransient, op, target, err)
}
