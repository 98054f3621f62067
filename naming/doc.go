// Package naming produces and parses the remote filenames that carry
// backup-set metadata.
//
// A remote object's name is the only persisted form of its metadata: set
// type, covered time range, volume number, and the manifest, compression,
// encryption, and partial flags are all encoded into the filename and
// recovered from it when a directory listing is read back. Encoding is
// total and injective over valid entries; parsing is partial and silently
// rejects foreign names, since remote directories routinely contain files
// that are not ours.
//
// The package is pure: no I/O, no state, safe for unrestricted concurrent
// use.
package naming
