// Package crypt provides the streaming encryption layer applied to
// archives before upload. Encryption is always the outermost wrapping,
// so a remote object can be identified and decrypted without first
// decompressing it.
package crypt

import (
	"errors"
	"io"
)

// Errors returned by the encryption layer.
var (
	// ErrNoRecipients is returned when an encrypter is constructed
	// without anyone able to decrypt its output.
	ErrNoRecipients = errors.New("crypt: no recipients")

	// ErrNoIdentities is returned when decryption is attempted without
	// any identity to try.
	ErrNoIdentities = errors.New("crypt: no identities")
)

// Encrypter seals and opens streams. Encrypt returns a writer that
// encrypts into dst; the ciphertext is complete only after Close.
// Decrypt returns a reader of the plaintext; the caller closes it.
type Encrypter interface {
	Encrypt(dst io.Writer) (io.WriteCloser, error)
	Decrypt(src io.Reader) (io.ReadCloser, error)
}
