// Package safeerr defines the error kinds shared by SafeStore's crypto,
// store, and server packages: CryptoFailure, AuthFailed,
// StructuralInvariant, and SignatureInvalid.
package safeerr

import (
	"errors"
	"fmt"
)

// CryptoFailure wraps an AEAD or box authentication failure: tag mismatch,
// truncated ciphertext, or a cipher construction error. Fatal to the
// operation; never retried inside the core.
type CryptoFailure struct {
	Op     string // e.g. "sym_decrypt", "asym_decrypt"
	Detail string
	Err    error
}

func (e *CryptoFailure) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("crypto failure: %s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("crypto failure: %s", e.Op)
}

func (e *CryptoFailure) Unwrap() error { return e.Err }

// AuthFailed represents a challenge-hash mismatch at login/logout, or an
// unrecognized username. Server state is left unchanged.
type AuthFailed struct {
	Reason string
}

func (e *AuthFailed) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("authentication failed: %s", e.Reason)
	}
	return "authentication failed"
}

// StructuralInvariant indicates a folder's file_keys/folder_keys tables do
// not match its files/folders lists — a programming bug or tampered
// ciphertext. Fatal.
type StructuralInvariant struct {
	Detail string
}

func (e *StructuralInvariant) Error() string {
	return fmt.Sprintf("structural invariant violated: %s", e.Detail)
}

// SignatureInvalid indicates Folder/File signature verification failed.
// Only reachable when the optional signing capability is exercised.
type SignatureInvalid struct {
	Detail string
}

func (e *SignatureInvalid) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("signature invalid: %s", e.Detail)
	}
	return "signature invalid"
}

// Sentinel errors, kept for callers that prefer errors.Is over errors.As.
var (
	ErrCryptoFailure        = errors.New("crypto failure")
	ErrAuthFailed           = errors.New("authentication failed")
	ErrStructuralInvariant  = errors.New("structural invariant violated")
	ErrSignatureInvalid     = errors.New("signature invalid")
)

// Is methods make errors.Is(err, ErrXxx) match the typed error of that kind.
func (e *CryptoFailure) Is(target error) bool       { return target == ErrCryptoFailure }
func (e *AuthFailed) Is(target error) bool          { return target == ErrAuthFailed }
func (e *StructuralInvariant) Is(target error) bool { return target == ErrStructuralInvariant }
func (e *SignatureInvalid) Is(target error) bool    { return target == ErrSignatureInvalid }

// NewCryptoFailure builds a CryptoFailure wrapping err for the named
// operation.
func NewCryptoFailure(op string, err error) error {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &CryptoFailure{Op: op, Detail: detail, Err: err}
}

// NewAuthFailed builds an AuthFailed with the given human-readable reason.
func NewAuthFailed(reason string) error {
	return &AuthFailed{Reason: reason}
}

// NewStructuralInvariant builds a StructuralInvariant error.
func NewStructuralInvariant(detail string) error {
	return &StructuralInvariant{Detail: detail}
}

// NewSignatureInvalid builds a SignatureInvalid error.
func NewSignatureInvalid(detail string) error {
	return &SignatureInvalid{Detail: detail}
}

// IsCryptoFailure reports whether err is (or wraps) a CryptoFailure.
func IsCryptoFailure(err error) bool {
	var e *CryptoFailure
	return errors.As(err, &e)
}

// IsAuthFailed reports whether err is (or wraps) an AuthFailed.
func IsAuthFailed(err error) bool {
	var e *AuthFailed
	return errors.As(err, &e)
}

// IsStructuralInvariant reports whether err is (or wraps) a
// StructuralInvariant.
func IsStructuralInvariant(err error) bool {
	var e *StructuralInvariant
	return errors.As(err, &e)
}

// IsSignatureInvalid reports whether err is (or wraps) a SignatureInvalid.
func IsSignatureInvalid(err error) bool {
	var e *SignatureInvalid
	return errors.As(err, &e)
}
