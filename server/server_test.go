package server

import (
	"bytes"
	"testing"

	"github.com/TitusVM/safestore/crypto"
	"github.com/TitusVM/safestore/safeerr"
	"github.com/TitusVM/safestore/store"
	"github.com/TitusVM/safestore/user"
)

// testParams keeps Argon2id cheap enough for the test suite; the derivation
// structure under test is identical to DefaultParams.
func testParams() crypto.Params {
	return crypto.Params{Memory: 16 * 1024, Iterations: 1, Parallelism: 1, KeySize: 32}
}

// client models the full client side of the protocol for tests: the whole
// key hierarchy, derived once per enroll call.
type client struct {
	user          *user.User
	passwordSalt  []byte
	passwordHash  []byte
	masterKey     []byte
	challengeHash []byte
}

func deriveClient(t *testing.T, u *user.User, password, passwordSalt []byte) *client {
	t.Helper()

	passwordHash, passwordSalt, err := crypto.HashPassword(password, passwordSalt, testParams())
	if err != nil {
		t.Fatalf("deriving password hash failed: %v", err)
	}
	masterKey, _, err := crypto.HashPassword(passwordHash, nil, testParams())
	if err != nil {
		t.Fatalf("deriving master key failed: %v", err)
	}
	challengeSalt := crypto.SaltString(u.ID[:])
	challengeHash, _, err := crypto.HashPassword(passwordHash, challengeSalt, testParams())
	if err != nil {
		t.Fatalf("deriving challenge hash failed: %v", err)
	}

	return &client{
		user:          u,
		passwordSalt:  passwordSalt,
		passwordHash:  passwordHash,
		masterKey:     masterKey,
		challengeHash: challengeHash,
	}
}

// enroll registers a fresh user with srv and returns the client-side
// state.
func enroll(t *testing.T, srv *Server, name, password string) *client {
	t.Helper()

	u, err := user.New([]byte(name))
	if err != nil {
		t.Fatalf("user.New(%q) failed: %v", name, err)
	}
	c := deriveClient(t, u, []byte(password), nil)

	wrappedMK, err := crypto.SymEncrypt(c.passwordHash, c.masterKey)
	if err != nil {
		t.Fatalf("wrapping master key failed: %v", err)
	}

	root := store.NewFolder(u.ID[:], u.Name)
	encRoot, err := root.SymEncrypt(c.masterKey, true)
	if err != nil {
		t.Fatalf("encrypting root folder failed: %v", err)
	}

	challengeSalt := crypto.SaltString(u.ID[:])
	if err := srv.AddUser(u, wrappedMK, c.passwordSalt, challengeSalt, c.challengeHash, encRoot); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	return c
}

func TestRegisterAndLogin(t *testing.T) {
	srv := New()
	alice := enroll(t, srv, "Alice", "password")

	encRoot, wrappedMK, err := srv.Login(alice.user.Name, alice.challengeHash)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	masterKey, err := crypto.SymDecrypt(alice.passwordHash, wrappedMK)
	if err != nil {
		t.Fatalf("unwrapping master key failed: %v", err)
	}
	if !bytes.Equal(masterKey, alice.masterKey) {
		t.Fatal("unwrapped master key differs from the one enrolled")
	}

	root, err := encRoot.SymDecrypt(masterKey, true)
	if err != nil {
		t.Fatalf("decrypting root folder failed: %v", err)
	}
	if !bytes.Equal(root.Name, alice.user.ID[:]) {
		t.Fatal("decrypted root folder does not carry the user's UUID as its name")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv := New()
	alice := enroll(t, srv, "Alice", "password")

	imposter := deriveClient(t, alice.user, []byte("wrong"), alice.passwordSalt)
	if _, _, err := srv.Login(alice.user.Name, imposter.challengeHash); !safeerr.IsAuthFailed(err) {
		t.Fatalf("Login with wrong password: got %v, want AuthFailed", err)
	}

	// Correct credentials must still work afterwards: the failed attempt
	// changed no state.
	if _, _, err := srv.Login(alice.user.Name, alice.challengeHash); err != nil {
		t.Fatalf("Login after a failed attempt: %v", err)
	}
}

func TestLoginUnknownUsername(t *testing.T) {
	srv := New()
	enroll(t, srv, "Alice", "password")

	if _, _, err := srv.Login([]byte("Mallory"), make([]byte, 32)); !safeerr.IsAuthFailed(err) {
		t.Fatalf("Login with unknown username: got %v, want AuthFailed", err)
	}
}

func TestLoginReturnsCopies(t *testing.T) {
	srv := New()
	alice := enroll(t, srv, "Alice", "password")

	encRoot, wrappedMK, err := srv.Login(alice.user.Name, alice.challengeHash)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Defacing what the server handed out must not reach its tables.
	encRoot.Name[0] ^= 0xff
	encRoot.Owner[0] ^= 0xff
	wrappedMK[0] ^= 0xff

	again, wmkAgain, err := srv.Login(alice.user.Name, alice.challengeHash)
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}
	if !bytes.Equal(again.Name, alice.user.ID[:]) {
		t.Fatal("server state was mutated through a returned root folder")
	}
	masterKey, err := crypto.SymDecrypt(alice.passwordHash, wmkAgain)
	if err != nil {
		t.Fatalf("unwrapping the freshly returned master key failed: %v", err)
	}
	if !bytes.Equal(masterKey, alice.masterKey) {
		t.Fatal("server state was mutated through a returned wrapped master key")
	}
}

func TestAddUserRootNameMismatch(t *testing.T) {
	srv := New()
	u, err := user.New([]byte("Alice"))
	if err != nil {
		t.Fatalf("user.New failed: %v", err)
	}

	badRoot := store.NewFolder([]byte("not-the-uuid"), u.Name)
	err = srv.AddUser(u, nil, nil, nil, make([]byte, 32), badRoot)
	if !safeerr.IsStructuralInvariant(err) {
		t.Fatalf("AddUser with mismatched root name: got %v, want StructuralInvariant", err)
	}
}

func TestAddUserDuplicate(t *testing.T) {
	srv := New()
	alice := enroll(t, srv, "Alice", "password")

	root := store.NewFolder(alice.user.ID[:], alice.user.Name)
	err := srv.AddUser(alice.user, nil, nil, nil, make([]byte, 32), root)
	if !safeerr.IsStructuralInvariant(err) {
		t.Fatalf("duplicate AddUser: got %v, want StructuralInvariant", err)
	}
}

func TestLogoutWriteback(t *testing.T) {
	srv := New()
	alice := enroll(t, srv, "Alice", "password")

	// The client adds a subfolder and writes the new tree back on logout,
	// keeping the same password.
	encRoot, wrappedMK, err := srv.Login(alice.user.Name, alice.challengeHash)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	root, err := encRoot.SymDecrypt(alice.masterKey, true)
	if err != nil {
		t.Fatalf("decrypting root failed: %v", err)
	}

	homeKey, err := crypto.RandomKey()
	if err != nil {
		t.Fatalf("RandomKey failed: %v", err)
	}
	root.AddFolder(store.NewFolder([]byte("home"), alice.user.Name), homeKey)

	newEncRoot, err := root.SymEncrypt(alice.masterKey, true)
	if err != nil {
		t.Fatalf("re-encrypting root failed: %v", err)
	}
	if err := srv.Logout(alice.user.Name, newEncRoot, wrappedMK, alice.challengeHash, nil, nil); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	// The next login must see the written-back tree.
	encRoot, _, err = srv.Login(alice.user.Name, alice.challengeHash)
	if err != nil {
		t.Fatalf("re-Login failed: %v", err)
	}
	root, err = encRoot.SymDecrypt(alice.masterKey, true)
	if err != nil {
		t.Fatalf("decrypting written-back root failed: %v", err)
	}
	if len(root.Folders) != 1 || !bytes.Equal(root.Folders[0].Name, []byte("home")) {
		t.Fatal("written-back tree does not contain the added subfolder")
	}
}

func TestLogoutPasswordChange(t *testing.T) {
	srv := New()
	alice := enroll(t, srv, "Alice", "password")

	encRoot, _, err := srv.Login(alice.user.Name, alice.challengeHash)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	root, err := encRoot.SymDecrypt(alice.masterKey, true)
	if err != nil {
		t.Fatalf("decrypting root failed: %v", err)
	}

	// Re-derive the whole hierarchy under the new password and re-encrypt
	// the tree before handing anything to the server.
	next := deriveClient(t, alice.user, []byte("correct horse"), nil)
	newWrappedMK, err := crypto.SymEncrypt(next.passwordHash, next.masterKey)
	if err != nil {
		t.Fatalf("wrapping new master key failed: %v", err)
	}
	newEncRoot, err := root.SymEncrypt(next.masterKey, true)
	if err != nil {
		t.Fatalf("re-encrypting root failed: %v", err)
	}

	err = srv.Logout(alice.user.Name, newEncRoot, newWrappedMK, alice.challengeHash, next.challengeHash, next.passwordSalt)
	if err != nil {
		t.Fatalf("Logout with password change failed: %v", err)
	}

	// Old credentials are dead, new ones work end to end.
	if _, _, err := srv.Login(alice.user.Name, alice.challengeHash); !safeerr.IsAuthFailed(err) {
		t.Fatalf("Login with the old challenge hash: got %v, want AuthFailed", err)
	}

	encRoot, wrappedMK, err := srv.Login(alice.user.Name, next.challengeHash)
	if err != nil {
		t.Fatalf("Login with the new challenge hash failed: %v", err)
	}
	masterKey, err := crypto.SymDecrypt(next.passwordHash, wrappedMK)
	if err != nil {
		t.Fatalf("unwrapping the rotated master key failed: %v", err)
	}
	if _, err := encRoot.SymDecrypt(masterKey, true); err != nil {
		t.Fatalf("decrypting the re-encrypted root failed: %v", err)
	}
}

func TestLogoutWrongHashChangesNothing(t *testing.T) {
	srv := New()
	alice := enroll(t, srv, "Alice", "password")

	bogusRoot := store.NewFolder(alice.user.ID[:], alice.user.Name)
	encBogus, err := bogusRoot.SymEncrypt(alice.masterKey, true)
	if err != nil {
		t.Fatalf("encrypting folder failed: %v", err)
	}

	err = srv.Logout(alice.user.Name, encBogus, []byte("junk"), make([]byte, 32), nil, nil)
	if !safeerr.IsAuthFailed(err) {
		t.Fatalf("Logout with wrong challenge hash: got %v, want AuthFailed", err)
	}

	// State unchanged: the original wrapped master key still comes back.
	_, wrappedMK, err := srv.Login(alice.user.Name, alice.challengeHash)
	if err != nil {
		t.Fatalf("Login after failed Logout: %v", err)
	}
	masterKey, err := crypto.SymDecrypt(alice.passwordHash, wrappedMK)
	if err != nil {
		t.Fatalf("unwrapping master key failed: %v", err)
	}
	if !bytes.Equal(masterKey, alice.masterKey) {
		t.Fatal("a failed Logout mutated the stored wrapped master key")
	}
}

func TestLogoutUnknownUsername(t *testing.T) {
	srv := New()

	err := srv.Logout([]byte("Nobody"), store.Folder{}, nil, make([]byte, 32), nil, nil)
	if !safeerr.IsAuthFailed(err) {
		t.Fatalf("Logout for unknown username: got %v, want AuthFailed", err)
	}
}

func TestDisplayUsers(t *testing.T) {
	srv := New()
	alice := enroll(t, srv, "Alice", "password")
	enroll(t, srv, "Bob", "password")

	out := srv.DisplayUsers()
	if !bytes.Contains([]byte(out), []byte("Name: Alice")) || !bytes.Contains([]byte(out), []byte("Name: Bob")) {
		t.Fatalf("DisplayUsers() missing a registered user:\n%s", out)
	}
	if !bytes.Contains([]byte(out), []byte(alice.user.ID.String())) {
		t.Fatalf("DisplayUsers() missing a user id:\n%s", out)
	}
}

func TestDisplayRootFolders(t *testing.T) {
	srv := New()
	enroll(t, srv, "Alice", "password")

	out := srv.DisplayRootFolders()
	if !bytes.Contains([]byte(out), []byte("Root folder owned by:")) {
		t.Fatalf("DisplayRootFolders() missing the root line:\n%s", out)
	}
}
