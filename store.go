package drift

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/meigma/drift/backend"
	"github.com/meigma/drift/crypt"
	"github.com/meigma/drift/naming"
)

// Store ties a naming scheme, a retrying transport, and the optional
// compression and encryption pipeline together. Put and Get derive the
// remote name from the entry, so callers never handle filenames.
//
// A Store owns one transport session and supports one in-flight
// operation; open one Store per concurrent worker.
type Store struct {
	url     string
	scheme  naming.Scheme
	backend *backend.Wrapper

	enc      crypt.Encrypter
	compress bool
	policy   backend.Policy
	logger   *slog.Logger
}

// Open connects to the storage target and returns a ready Store.
func Open(ctx context.Context, rawURL string, opts ...Option) (*Store, error) {
	s := &Store{url: rawURL}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	b, err := backend.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	s.backend = backend.NewWrapper(b,
		backend.WithPolicy(s.policy),
		backend.WithLogger(s.logger),
	)
	return s, nil
}

func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Scheme returns the naming scheme in use.
func (s *Store) Scheme() naming.Scheme { return s.scheme }

// Object pairs a remote name with its decoded entry.
type Object struct {
	Name  string
	Entry naming.Entry
}

// Entries lists the remote store and decodes every name that belongs
// to this scheme. Foreign names are skipped.
func (s *Store) Entries(ctx context.Context) ([]Object, error) {
	names, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	objects := make([]Object, 0, len(names))
	for _, name := range names {
		e, ok := s.scheme.Parse(name)
		if !ok {
			s.log().Debug("skipping foreign object", "name", name)
			continue
		}
		objects = append(objects, Object{Name: name, Entry: e})
	}
	return objects, nil
}

// Put seals the local file per the store's pipeline and uploads it
// under the name encoded from the entry. The entry's Compressed and
// Encrypted flags are forced to match the pipeline, so the remote name
// always describes the object's actual wrapping. The remote name is
// returned.
func (s *Store) Put(ctx context.Context, localPath string, e naming.Entry) (string, error) {
	e.Compressed = s.compress
	e.Encrypted = s.enc != nil
	name, err := s.scheme.Encode(e)
	if err != nil {
		return "", err
	}

	if !e.Compressed && !e.Encrypted {
		return name, s.backend.Put(ctx, localPath, name)
	}

	sealed, err := s.seal(localPath)
	if err != nil {
		return "", fmt.Errorf("drift: seal %s: %w", localPath, err)
	}
	defer os.Remove(sealed)
	return name, s.backend.Put(ctx, sealed, name)
}

// Get downloads the object named by the entry and unwraps it into
// localPath. The entry's flags decide which unwrap steps run, so an
// entry obtained from Entries or Collections opens correctly whatever
// the uploader's pipeline was.
func (s *Store) Get(ctx context.Context, e naming.Entry, localPath string) error {
	name, err := s.scheme.Encode(e)
	if err != nil {
		return err
	}

	if !e.Compressed && !e.Encrypted {
		return s.backend.Get(ctx, name, localPath)
	}

	tmp, err := tempName()
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := s.backend.Get(ctx, name, tmp); err != nil {
		return err
	}
	if err := s.open(tmp, localPath, e); err != nil {
		return fmt.Errorf("drift: open %s: %w", name, err)
	}
	return nil
}

// Delete removes the object named by the entry. Deleting an object
// that is already gone is a success.
func (s *Store) Delete(ctx context.Context, e naming.Entry) error {
	name, err := s.scheme.Encode(e)
	if err != nil {
		return err
	}
	return s.backend.Delete(ctx, name)
}

// Query returns the remote size of the object named by the entry, or
// SizeMissing if it does not exist.
func (s *Store) Query(ctx context.Context, e naming.Entry) (int64, error) {
	name, err := s.scheme.Encode(e)
	if err != nil {
		return 0, err
	}
	return s.backend.Query(ctx, name)
}

// Reset tears down and rebuilds the transport session.
func (s *Store) Reset(ctx context.Context) error { return s.backend.Reset(ctx) }

// Close shuts the transport session down permanently.
func (s *Store) Close() error { return s.backend.Close() }

// seal writes the compressed and encrypted form of the local file to a
// temporary file and returns its path. Encryption is the outermost
// layer, matching the suffix order of the filename codec.
func (s *Store) seal(localPath string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "drift-seal-*")
	if err != nil {
		return "", err
	}

	err = func() error {
		var w io.Writer = tmp
		var closers []io.Closer

		if s.enc != nil {
			ew, err := s.enc.Encrypt(w)
			if err != nil {
				return err
			}
			closers = append(closers, ew)
			w = ew
		}
		if s.compress {
			gz := gzip.NewWriter(w)
			closers = append(closers, gz)
			w = gz
		}
		if _, err := io.Copy(w, src); err != nil {
			return err
		}
		// Close innermost first so each layer flushes into the next.
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				return err
			}
		}
		return tmp.Close()
	}()
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// open unwraps a downloaded object into localPath per the entry flags.
func (s *Store) open(sealedPath, localPath string, e naming.Entry) error {
	src, err := os.Open(sealedPath)
	if err != nil {
		return err
	}
	defer src.Close()

	var r io.Reader = src
	var closers []io.Closer

	if e.Encrypted {
		if s.enc == nil {
			return fmt.Errorf("object is encrypted and no encrypter is configured")
		}
		dr, err := s.enc.Decrypt(r)
		if err != nil {
			return err
		}
		closers = append(closers, dr)
		r = dr
	}
	if e.Compressed {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return err
		}
		closers = append(closers, gz)
		r = gz
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return err
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			dst.Close()
			return err
		}
	}
	return dst.Close()
}

func tempName() (string, error) {
	f, err := os.CreateTemp("", "drift-dl-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}
