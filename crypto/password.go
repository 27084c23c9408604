package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// defaultSaltSize is the length of freshly generated salts.
const defaultSaltSize = 32

// HashPassword derives params.KeySize raw bytes from pw and salt using
// Argon2id, suitable directly as an AEAD key. If salt is nil, a fresh random
// salt of defaultSaltSize bytes is generated. HashPassword fills two
// distinct roles in the key hierarchy: deriving the client-side
// password-hash from a password, and re-hashing that password-hash under a
// distinct salt domain to produce either the server-visible challenge-hash
// or the master key. The salt argument is what separates those domains;
// given a non-nil salt, the function is deterministic.
func HashPassword(pw, salt []byte, params Params) (hash, usedSalt []byte, err error) {
	if salt == nil {
		salt = make([]byte, defaultSaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, fmt.Errorf("generate salt: %w", err)
		}
	}

	hash = argon2.IDKey(pw, salt, params.Iterations, params.Memory, params.Parallelism, params.KeySize)
	return hash, salt, nil
}

// SaltString encodes raw bytes (typically a user's 16-byte UUID) as a
// PHC-style salt string. The encoded bytes are fed to HashPassword as the
// salt domain for challenge-hash derivation, so the challenge salt is
// reproducible by anyone who knows the UUID.
func SaltString(b []byte) []byte {
	return []byte(base64.RawStdEncoding.EncodeToString(b))
}
