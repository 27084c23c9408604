package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"github.com/TitusVM/safestore/safeerr"
)

// boxNonceSize is the nonce size box.Seal/box.Open require.
const boxNonceSize = 24

// PublicKeySize and SecretKeySize are the byte lengths of a Curve25519 box
// keypair, as produced by GenerateKeyPair.
const (
	PublicKeySize = 32
	SecretKeySize = 32
)

// KeyPair is an authenticated-encryption identity: a Curve25519 public key
// and its matching secret key, generated once per User and used as that
// user's sharing identity.
type KeyPair struct {
	Public [PublicKeySize]byte
	Secret [SecretKeySize]byte
}

// GenerateKeyPair draws a fresh Curve25519 keypair from the CSPRNG.
func GenerateKeyPair() (KeyPair, error) {
	pub, sec, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate box keypair: %w", err)
	}
	return KeyPair{Public: *pub, Secret: *sec}, nil
}

// AsymEncrypt authenticated-encrypts pt from senderSK to recipientPK using a
// libsodium-style box (Curve25519 + XSalsa20-Poly1305), returning
// nonce(24) || box. Each call draws a fresh random nonce; reusing a nonce
// across two encryptions under the same sender/recipient pair would leak
// whether the two plaintexts are equal.
func AsymEncrypt(senderSK *[SecretKeySize]byte, recipientPK *[PublicKeySize]byte, pt []byte) ([]byte, error) {
	nonce := new([boxNonceSize]byte)
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, safeerr.NewCryptoFailure("asym_encrypt", fmt.Errorf("generate nonce: %w", err))
	}

	sealed := box.Seal(nil, pt, nonce, recipientPK, senderSK)
	blob := make([]byte, 0, boxNonceSize+len(sealed))
	blob = append(blob, nonce[:]...)
	blob = append(blob, sealed...)
	return blob, nil
}

// AsymDecrypt is the inverse of AsymEncrypt: given the sender's public key
// and the recipient's secret key, it recovers the plaintext or fails
// CryptoFailure on authentication failure or a truncated blob. Note the
// argument order inverts relative to AsymEncrypt.
func AsymDecrypt(senderPK *[PublicKeySize]byte, recipientSK *[SecretKeySize]byte, blob []byte) ([]byte, error) {
	if len(blob) < boxNonceSize {
		return nil, safeerr.NewCryptoFailure("asym_decrypt", fmt.Errorf("ciphertext too short: %d bytes", len(blob)))
	}

	nonce := new([boxNonceSize]byte)
	copy(nonce[:], blob[:boxNonceSize])

	pt, ok := box.Open(nil, blob[boxNonceSize:], nonce, senderPK, recipientSK)
	if !ok {
		return nil, safeerr.NewCryptoFailure("asym_decrypt", fmt.Errorf("box authentication failed"))
	}
	return pt, nil
}
