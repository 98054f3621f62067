package backend

import "context"

// SizeMissing is the size reported by Query for an object that does not
// exist. Chain-consistency checks need to distinguish "missing" from
// "transport failed" without error-based control flow at the call site.
const SizeMissing int64 = -1

// Backend is the capability set a storage target implements. Operations
// are blocking: Put and Get return only once the transfer has completed
// or failed, and a visible success implies the full content is in place.
//
// Implementations report failures through errors classified with this
// package's Error type; anything unclassified is treated as transient and
// retried. Each implementation must make Put idempotent for a repeated
// (localPath, remoteName) pair and Delete idempotent for an absent name,
// since the retry layer may re-issue either.
//
// A Backend instance is not safe for concurrent use. It owns one
// transport session, created connected by its constructor, torn down and
// rebuilt by Reset, and released by Close.
type Backend interface {
	// Put uploads the local file under the given remote name. The upload
	// is atomic from the caller's point of view: afterwards the complete
	// object exists under remoteName, or an error is returned and nothing
	// retrievable exists under that name.
	Put(ctx context.Context, localPath, remoteName string) error

	// Get downloads the named object into the local file, truncating it
	// first. A truncated or interrupted download is an error, never a
	// silent partial result.
	Get(ctx context.Context, remoteName, localPath string) error

	// List returns every object name under the configured location with
	// the location prefix stripped, in arbitrary order.
	List(ctx context.Context) ([]string, error)

	// Delete removes the named object. Deleting an absent object is an
	// error classified KindNotFound; the retry layer turns that into
	// success.
	Delete(ctx context.Context, remoteName string) error

	// Query returns the size of the named object. A missing object is an
	// error classified KindNotFound; the retry layer maps it to
	// SizeMissing.
	Query(ctx context.Context, remoteName string) (int64, error)

	// Reset tears down and re-establishes the transport session:
	// reconnect, re-authenticate, re-check the target location. It is
	// idempotent and valid in any state.
	Reset(ctx context.Context) error

	// Close releases the session permanently. Only Reset may follow.
	Close() error
}
