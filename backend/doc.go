// Package backend defines the transport contract every remote store
// implements and the retry wrapper that makes transient failures invisible
// to callers.
//
// A Backend moves whole files: put, get, list, delete, query. One backend
// instance owns one transport session and supports a single in-flight
// operation; callers wanting parallel transfers open independent instances.
// Concrete transports live in subpackages and register themselves by URI
// scheme in an init function; Open selects and constructs one from a URL.
//
// Wrapper decorates any Backend with failure classification, bounded
// retries with exponential backoff, and a session reset between attempts.
// Callers use the Wrapper; the bare Backend is the contract transports
// implement.
package backend
