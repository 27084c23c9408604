// Package user defines SafeStore's User identity: a UUIDv4, a display name,
// a signing keypair, and an encryption keypair. The encryption keypair is
// the identity other users encrypt to when sharing.
package user

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"

	"github.com/TitusVM/safestore/crypto"
)

// User carries the identity and both keypairs a client needs: a signing
// keypair (used only by the optional, not-end-to-end signing capability)
// and an encryption keypair (the server-visible sharing identity).
type User struct {
	ID   uuid.UUID
	Name []byte

	SigningPublic ed25519.PublicKey
	signingSecret ed25519.PrivateKey

	EncryptionKeys crypto.KeyPair
}

// New generates a fresh User: a random UUIDv4 identity, an Ed25519 signing
// keypair, and a Curve25519 encryption keypair.
func New(name []byte) (*User, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate user uuid: %w", err)
	}

	signPub, signSec, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing keypair: %w", err)
	}

	encKeys, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate encryption keypair: %w", err)
	}

	return &User{
		ID:             id,
		Name:           name,
		SigningPublic:  signPub,
		signingSecret:  signSec,
		EncryptionKeys: encKeys,
	}, nil
}

// Sign computes an Ed25519 signature over data using the user's signing
// secret key.
func (u *User) Sign(data []byte) []byte {
	return ed25519.Sign(u.signingSecret, data)
}

// Verify checks an Ed25519 signature over data against the user's public
// signing key.
func (u *User) Verify(data, signature []byte) bool {
	return ed25519.Verify(u.SigningPublic, data, signature)
}

// String renders a one-line identity summary for CLI banners and %v
// logging.
func (u *User) String() string {
	return fmt.Sprintf("User ID: %s, Name: %s", u.ID, u.Name)
}
