// Package crypto implements SafeStore's primitive cryptographic layer
// (C1): AEAD symmetric encryption, authenticated public-key encryption,
// salted password hashing, and CSPRNG-backed key/nonce generation. Nothing
// above this package is allowed to reach into crypto/aes, crypto/cipher, or
// golang.org/x/crypto/nacl/box directly — every other package composes
// SafeStore's encryption and password hashing through the functions
// declared here. Signing is outside this package: package user uses
// crypto/ed25519 directly.
package crypto

// Params configures Argon2id: memory in KiB, iteration count, and
// parallelism degree. The zero value is not usable; use DefaultParams.
type Params struct {
	Memory      uint32 // KiB, e.g. 64*1024 for 64 MB
	Iterations  uint32
	Parallelism uint8
	KeySize     uint32 // derived output size in bytes
}

// DefaultParams returns the Argon2id tuning SafeStore uses everywhere:
// password-hash derivation, challenge-hash derivation, and master-key
// derivation all share one parameter set.
func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		KeySize:     32,
	}
}
