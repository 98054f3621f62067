// Package drift stores encrypted incremental backup archives on remote
// storage reachable through pluggable transports.
//
// The package is organized around three layers:
//   - naming: the deterministic codec between archive metadata and
//     remote filenames.
//   - backend: the transport contract, scheme registry, and retry
//     engine shared by every transport.
//   - drift (this package): the Store facade running the
//     compress/encrypt pipeline around uploads and downloads, the chain
//     resolver reconstructing backup chains from remote listings, and a
//     bounded-concurrency uploader.
//
// Transports register themselves on import:
//
//	import (
//		_ "github.com/meigma/drift/backend/file"
//		_ "github.com/meigma/drift/backend/s3"
//	)
package drift

import (
	"github.com/meigma/drift/backend"
	"github.com/meigma/drift/naming"
)

// Re-export the naming types callers handle directly.
type (
	// Entry is the decoded metadata of one remote object.
	Entry = naming.Entry

	// SetType identifies which kind of backup set an object belongs to.
	SetType = naming.SetType

	// Scheme fixes the filename dialect and prefixes.
	Scheme = naming.Scheme
)

// Re-export the set type constants.
const (
	Full    = naming.Full
	Inc     = naming.Inc
	FullSig = naming.FullSig
	NewSig  = naming.NewSig
)

// SizeMissing is the Query result for an object that does not exist.
const SizeMissing = backend.SizeMissing

// Sentinel errors re-exported from the subpackages.
var (
	// ErrInvalidEntry is returned when an entry cannot be encoded.
	ErrInvalidEntry = naming.ErrInvalidEntry

	// ErrInvalidURL is returned when a target URL cannot be parsed.
	ErrInvalidURL = backend.ErrInvalidURL

	// ErrUnsupportedScheme is returned when no transport is registered
	// for a URL's scheme.
	ErrUnsupportedScheme = backend.ErrUnsupportedScheme
)

// IsNotFound reports whether err stems from an object that does not
// exist on the remote.
func IsNotFound(err error) bool { return backend.IsNotFound(err) }
