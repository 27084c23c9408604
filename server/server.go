// Package server implements SafeStore's in-memory account registry:
// challenge-based login and writeback-on-logout that authenticate users
// without the server ever learning a password or password hash.
package server

import (
	"bytes"
	"crypto/subtle"
	"sync"

	"github.com/google/uuid"

	"github.com/TitusVM/safestore/safeerr"
	"github.com/TitusVM/safestore/store"
	"github.com/TitusVM/safestore/user"
)

// account is the server's per-user record: authentication material, the
// encrypted root folder, and the wrapped master key. AddUser and Logout
// update all of it together, under the single lock below.
type account struct {
	User          *user.User
	PasswordSalt  []byte
	ChallengeSalt []byte
	ChallengeHash []byte

	RootFolder       store.Folder
	WrappedMasterKey []byte
}

// Server holds every registered user's authentication material and
// encrypted root folder. The zero value is not usable; use New. All
// mutation goes through AddUser and Logout; one mutex covers the whole
// registry so each is a critical section.
type Server struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*account
}

// New returns an empty Server.
func New() *Server {
	return &Server{accounts: make(map[uuid.UUID]*account)}
}

// AddUser registers a new account. The precondition rootFolder.Name ==
// user.ID bytes is enforced; duplicate adds for an already-known UUID are
// treated as a client bug and rejected with StructuralInvariant rather
// than silently overwriting state.
func (s *Server) AddUser(u *user.User, wrappedMasterKey, passwordSalt, challengeSalt, challengeHash []byte, rootFolder store.Folder) error {
	idBytes := u.ID[:]
	if !bytes.Equal(rootFolder.Name, idBytes) {
		return safeerr.NewStructuralInvariant("root folder name does not match user id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[u.ID]; exists {
		return safeerr.NewStructuralInvariant("user already registered")
	}

	s.accounts[u.ID] = &account{
		User:             u,
		PasswordSalt:     cloneBytes(passwordSalt),
		ChallengeSalt:    cloneBytes(challengeSalt),
		ChallengeHash:    cloneBytes(challengeHash),
		RootFolder:       rootFolder.Clone(),
		WrappedMasterKey: cloneBytes(wrappedMasterKey),
	}
	return nil
}

// dummyChallengeHash is compared against when a username does not resolve,
// so that an unknown-username login still performs a constant-time compare
// of plausible size before failing.
var dummyChallengeHash = make([]byte, 32)

// Login resolves username to an account, verifies givenChallengeHash
// against the stored challenge hash in constant time, and on success
// returns a deep copy of the root folder plus the wrapped master key. On
// any failure, no server state is read back to the caller.
func (s *Server) Login(username, givenChallengeHash []byte) (store.Folder, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, found := s.findByName(username)
	if !found {
		// Perform a dummy comparison to approximate constant time even when
		// the username itself is unknown (best-effort).
		subtle.ConstantTimeCompare(givenChallengeHash, dummyChallengeHash)
		return store.Folder{}, nil, safeerr.NewAuthFailed("unknown username")
	}

	if subtle.ConstantTimeCompare(givenChallengeHash, acc.ChallengeHash) != 1 {
		return store.Folder{}, nil, safeerr.NewAuthFailed("challenge hash mismatch")
	}

	return acc.RootFolder.Clone(), cloneBytes(acc.WrappedMasterKey), nil
}

// Logout re-authenticates the caller, then overwrites the stored root
// folder and wrapped master key with the values supplied. If
// newChallengeHash and newPasswordSalt are both non-nil, the
// password-change path also rotates the stored salt and challenge hash. On
// authentication failure, no state is touched.
//
// Re-authentication compares givenChallengeHash directly against the
// stored challenge hash, the same proof Login accepts. Re-hashing the
// incoming value an extra round here would mean logout only ever succeeds
// for a caller presenting the raw password hash, which must never leave
// the client.
func (s *Server) Logout(username []byte, encRootFolder store.Folder, wrappedMasterKey, givenChallengeHash, newChallengeHash, newPasswordSalt []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, found := s.findByName(username)
	if !found {
		subtle.ConstantTimeCompare(givenChallengeHash, dummyChallengeHash)
		return safeerr.NewAuthFailed("unknown username")
	}

	if subtle.ConstantTimeCompare(givenChallengeHash, acc.ChallengeHash) != 1 {
		return safeerr.NewAuthFailed("challenge hash mismatch")
	}

	acc.RootFolder = encRootFolder.Clone()
	acc.WrappedMasterKey = cloneBytes(wrappedMasterKey)

	if newChallengeHash != nil && newPasswordSalt != nil {
		acc.PasswordSalt = cloneBytes(newPasswordSalt)
		acc.ChallengeHash = cloneBytes(newChallengeHash)
	}

	return nil
}

// findByName resolves a username by linear scan. Must be called with s.mu
// held.
func (s *Server) findByName(name []byte) (*account, bool) {
	for _, acc := range s.accounts {
		if bytes.Equal(acc.User.Name, name) {
			return acc, true
		}
	}
	return nil, false
}

// DisplayUsers renders one line per registered user.
func (s *Server) DisplayUsers() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out string
	for _, acc := range s.accounts {
		out += acc.User.String() + "\n"
	}
	return out
}

// DisplayRootFolders renders the full tree of every registered root
// folder.
func (s *Server) DisplayRootFolders() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out string
	for _, acc := range s.accounts {
		out += acc.RootFolder.Display(0)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
