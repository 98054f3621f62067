package drift

import (
	"log/slog"

	"github.com/meigma/drift/backend"
	"github.com/meigma/drift/crypt"
	"github.com/meigma/drift/naming"
)

// Option configures a Store.
type Option func(*Store) error

// WithScheme sets the naming scheme. The zero scheme is the verbose
// dialect with no prefixes.
func WithScheme(scheme naming.Scheme) Option {
	return func(s *Store) error {
		s.scheme = scheme
		return nil
	}
}

// WithEncrypter enables the encryption layer. Uploads are sealed with
// it and downloads of encrypted objects are opened with it.
func WithEncrypter(e crypt.Encrypter) Option {
	return func(s *Store) error {
		s.enc = e
		return nil
	}
}

// WithCompression enables gzip compression of uploads.
func WithCompression(enabled bool) Option {
	return func(s *Store) error {
		s.compress = enabled
		return nil
	}
}

// WithRetryPolicy sets the transport retry policy. Unset fields fall
// back to backend.DefaultPolicy values.
func WithRetryPolicy(p backend.Policy) Option {
	return func(s *Store) error {
		s.policy = p
		return nil
	}
}

// WithLogger sets the logger for retry warnings and skipped objects.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = l
		return nil
	}
}
