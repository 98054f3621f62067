package crypt

import (
	"io"

	"filippo.io/age"
)

// Age encrypts with the age format. Recipients are needed to encrypt,
// identities to decrypt; either side may be empty when only one
// direction is used.
type Age struct {
	recipients []age.Recipient
	identities []age.Identity
}

var _ Encrypter = (*Age)(nil)

// NewAge builds an encrypter from explicit recipients and identities.
func NewAge(recipients []age.Recipient, identities []age.Identity) *Age {
	return &Age{recipients: recipients, identities: identities}
}

// NewAgePassphrase builds a symmetric encrypter from a passphrase,
// using age's scrypt recipient.
func NewAgePassphrase(passphrase string) (*Age, error) {
	r, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, err
	}
	i, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	return &Age{
		recipients: []age.Recipient{r},
		identities: []age.Identity{i},
	}, nil
}

func (a *Age) Encrypt(dst io.Writer) (io.WriteCloser, error) {
	if len(a.recipients) == 0 {
		return nil, ErrNoRecipients
	}
	return age.Encrypt(dst, a.recipients...)
}

func (a *Age) Decrypt(src io.Reader) (io.ReadCloser, error) {
	if len(a.identities) == 0 {
		return nil, ErrNoIdentities
	}
	r, err := age.Decrypt(src, a.identities...)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(r), nil
}
