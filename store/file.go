// Package store implements SafeStore's data model and recursive
// encrypted-tree codec: File (C2) and Folder (C3). Every transform returns
// a new value; nothing is mutated in place.
package store

import (
	"github.com/TitusVM/safestore/crypto"
	"github.com/TitusVM/safestore/safeerr"
	"github.com/TitusVM/safestore/user"
)

// File is a plaintext or ciphertext leaf: an opaque name/owner identifier
// pair, a data payload, and an optional signature. name and owner are
// opaque byte strings by convention UTF-8, but nothing here requires that.
type File struct {
	Name      []byte
	Owner     []byte
	Data      []byte
	Signature []byte
}

// NewFile constructs a File with an empty signature.
func NewFile(name, owner, data []byte) File {
	return File{Name: name, Owner: owner, Data: data}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Clone returns a deep copy of f.
func (f File) Clone() File {
	return File{
		Name:      cloneBytes(f.Name),
		Owner:     cloneBytes(f.Owner),
		Data:      cloneBytes(f.Data),
		Signature: cloneBytes(f.Signature),
	}
}

// SymEncrypt returns a new File whose name, owner, and data are
// independently AEAD-encrypted under key, each with its own fresh nonce.
// signature is copied verbatim.
func (f File) SymEncrypt(key []byte) (File, error) {
	name, err := crypto.SymEncrypt(key, f.Name)
	if err != nil {
		return File{}, err
	}
	owner, err := crypto.SymEncrypt(key, f.Owner)
	if err != nil {
		return File{}, err
	}
	data, err := crypto.SymEncrypt(key, f.Data)
	if err != nil {
		return File{}, err
	}
	return File{Name: name, Owner: owner, Data: data, Signature: cloneBytes(f.Signature)}, nil
}

// SymDecrypt is the inverse of SymEncrypt. Fails CryptoFailure if any field
// fails authentication.
func (f File) SymDecrypt(key []byte) (File, error) {
	name, err := crypto.SymDecrypt(key, f.Name)
	if err != nil {
		return File{}, err
	}
	owner, err := crypto.SymDecrypt(key, f.Owner)
	if err != nil {
		return File{}, err
	}
	data, err := crypto.SymDecrypt(key, f.Data)
	if err != nil {
		return File{}, err
	}
	return File{Name: name, Owner: owner, Data: data, Signature: cloneBytes(f.Signature)}, nil
}

// AsymEncrypt field-wise encrypts name, owner, and data from sender to
// receiver using the authenticated public-key box.
func (f File) AsymEncrypt(receiver, sender crypto.KeyPair) (File, error) {
	name, err := crypto.AsymEncrypt(&sender.Secret, &receiver.Public, f.Name)
	if err != nil {
		return File{}, err
	}
	owner, err := crypto.AsymEncrypt(&sender.Secret, &receiver.Public, f.Owner)
	if err != nil {
		return File{}, err
	}
	data, err := crypto.AsymEncrypt(&sender.Secret, &receiver.Public, f.Data)
	if err != nil {
		return File{}, err
	}
	return File{Name: name, Owner: owner, Data: data, Signature: cloneBytes(f.Signature)}, nil
}

// AsymDecrypt is the inverse of AsymEncrypt; note the argument order
// inverts relative to AsymEncrypt.
func (f File) AsymDecrypt(receiver, sender crypto.KeyPair) (File, error) {
	name, err := crypto.AsymDecrypt(&sender.Public, &receiver.Secret, f.Name)
	if err != nil {
		return File{}, err
	}
	owner, err := crypto.AsymDecrypt(&sender.Public, &receiver.Secret, f.Owner)
	if err != nil {
		return File{}, err
	}
	data, err := crypto.AsymDecrypt(&sender.Public, &receiver.Secret, f.Data)
	if err != nil {
		return File{}, err
	}
	return File{Name: name, Owner: owner, Data: data, Signature: cloneBytes(f.Signature)}, nil
}

// ToBytes is File's share of the canonical depth-first serialization used
// only as signing input: name || owner || data || signature.
func (f File) ToBytes() []byte {
	out := make([]byte, 0, len(f.Name)+len(f.Owner)+len(f.Data)+len(f.Signature))
	out = append(out, f.Name...)
	out = append(out, f.Owner...)
	out = append(out, f.Data...)
	out = append(out, f.Signature...)
	return out
}

// Sign returns a copy of f with Signature set to an Ed25519 signature over
// the ToBytes() of f with its Signature cleared, computed with u's signing
// key.
func (f File) Sign(u *user.User) File {
	unsigned := f
	unsigned.Signature = nil
	out := f
	out.Signature = u.Sign(unsigned.ToBytes())
	return out
}

// Verify reports whether f.Signature is a valid Ed25519 signature over the
// ToBytes() of f with its Signature cleared, under u's signing key.
func (f File) Verify(u *user.User) error {
	unsigned := f
	unsigned.Signature = nil
	if !u.Verify(unsigned.ToBytes(), f.Signature) {
		return safeerr.NewSignatureInvalid("file signature does not verify")
	}
	return nil
}

// DisplayNested renders one box-drawing tree line for this file, indented
// for the given nesting level.
func (f File) DisplayNested(level int, isLast bool) string {
	indent := ""
	for i := 0; i < level-1; i++ {
		indent += "│   "
	}
	if isLast {
		indent += "    "
	} else {
		indent += "│   "
	}
	return indent + "├── File: name: " + string(f.Name) + ", content: " + string(f.Data)
}
