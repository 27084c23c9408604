package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/TitusVM/safestore/safeerr"
)

// KeySize is the size in bytes of every symmetric key used by SafeStore:
// password hashes, challenge hashes, master keys, and per-object folder/file
// keys are all 32-byte AES-256 keys.
const KeySize = 32

// gcmNonceSize is the random nonce size AES-256-GCM requires, prepended to
// every symmetric ciphertext blob (wire layout: nonce(12) || ct || tag(16)).
const gcmNonceSize = 12

// minSymBlobSize is the minimum valid length of a sym_encrypt output:
// a 12-byte nonce plus a 16-byte GCM tag with zero-length plaintext.
const minSymBlobSize = gcmNonceSize + 16

// RandomKey returns 32 bytes drawn uniformly from the process CSPRNG,
// suitable for use as an AES-256-GCM key.
func RandomKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate random key: %w", err)
	}
	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("AES-256 requires a %d-byte key, got %d bytes", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// SymEncrypt AEAD-encrypts pt under the 32-byte key k, returning
// nonce(12) || ciphertext || tag(16). Every call uses a freshly generated
// random nonce, so repeated calls on the same (k, pt) produce different
// outputs.
func SymEncrypt(k, pt []byte) ([]byte, error) {
	aead, err := newAEAD(k)
	if err != nil {
		return nil, safeerr.NewCryptoFailure("sym_encrypt", err)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, safeerr.NewCryptoFailure("sym_encrypt", fmt.Errorf("generate nonce: %w", err))
	}

	ciphertext := aead.Seal(nil, nonce, pt, nil)
	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// SymDecrypt splits the first 12 bytes of blob as the nonce and AEAD-decrypts
// the remainder under k, failing CryptoFailure on tag mismatch or a blob
// shorter than the minimum valid size.
func SymDecrypt(k, blob []byte) ([]byte, error) {
	if len(blob) < minSymBlobSize {
		return nil, safeerr.NewCryptoFailure("sym_decrypt", fmt.Errorf("ciphertext too short: %d bytes", len(blob)))
	}

	aead, err := newAEAD(k)
	if err != nil {
		return nil, safeerr.NewCryptoFailure("sym_decrypt", err)
	}

	nonce, ciphertext := blob[:gcmNonceSize], blob[gcmNonceSize:]
	pt, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, safeerr.NewCryptoFailure("sym_decrypt", err)
	}
	return pt, nil
}
