//go:build integration

// Package integration provides integration tests for the drift library.
//
// The OCI transport tests require Docker and spin up a real registry
// using testcontainers. Run with: go test -tags=integration ./integration/...
package integration
