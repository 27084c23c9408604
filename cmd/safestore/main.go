// Command safestore runs a scripted demonstration of the SafeStore
// protocol: it registers two users, logs one of them in, rotates a
// password on logout, logs back in, and shares a folder between the two
// users — then prints the resulting trees. It takes no flags and reads no
// environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/TitusVM/safestore/crypto"
	"github.com/TitusVM/safestore/server"
	"github.com/TitusVM/safestore/store"
	"github.com/TitusVM/safestore/user"
)

const demoPassword = "password"

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

// clientState is what a SafeStore client keeps between requests: its
// identity, its password, and the password salt chosen at registration.
// The login flow assumes the caller already holds its salt; the demo
// simply plays the role of a client that remembers its own.
type clientState struct {
	User         *user.User
	Password     []byte
	PasswordSalt []byte
}

func main() {
	fmt.Println("=== SafeStore demo ===")

	srv := server.New()

	alice, err := registerDemoUser(srv, "Alice", demoPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register Alice")
	}
	bob, err := registerDemoUser(srv, "Bob", demoPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register Bob")
	}

	log.Info().Msg("registered Alice and Bob")

	aliceCipherRoot, aliceMK, err := login(srv, alice)
	if err != nil {
		log.Fatal().Err(err).Msg("Alice login failed")
	}
	log.Info().Msg("Alice logged in")

	alicePlainRoot, err := aliceCipherRoot.SymDecrypt(aliceMK, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Alice failed to decrypt her root folder")
	}

	// Alice adds a "home" subfolder with one file, then logs out, rotating
	// her password in the same call.
	homeKey, err := crypto.RandomKey()
	if err != nil {
		log.Fatal().Err(err).Msg("generate home folder key")
	}
	home := store.NewFolder([]byte("home"), alice.User.Name)
	fileKey, err := crypto.RandomKey()
	if err != nil {
		log.Fatal().Err(err).Msg("generate file key")
	}
	home.AddFile(store.NewFile(store.RandomFileName(), alice.User.Name, store.RandomFileContent()), fileKey)
	alicePlainRoot.AddFolder(home, homeKey)

	newPassword := []byte("new-password")
	if err := logoutWithPasswordChange(srv, alice, alicePlainRoot, newPassword); err != nil {
		log.Fatal().Err(err).Msg("Alice logout/password-change failed")
	}
	log.Info().Msg("Alice changed her password on logout")

	aliceCipherRoot, aliceMK, err = login(srv, alice)
	if err != nil {
		log.Fatal().Err(err).Msg("Alice re-login with new password failed")
	}
	log.Info().Msg("Alice logged back in with her new password")

	alicePlainRoot, err = aliceCipherRoot.SymDecrypt(aliceMK, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Alice failed to decrypt her root folder after re-login")
	}

	// Sharing: Alice re-encrypts a copy of her already-plaintext "home"
	// subfolder for Bob under his public key.
	decryptedHome, ok := findHome(alicePlainRoot)
	if !ok {
		log.Fatal().Msg("could not locate Alice's home folder")
	}
	shared, err := decryptedHome.AsymEncrypt(bob.User.EncryptionKeys, alice.User.EncryptionKeys)
	if err != nil {
		log.Fatal().Err(err).Msg("sharing encryption failed")
	}
	bobView, err := shared.AsymDecrypt(bob.User.EncryptionKeys, alice.User.EncryptionKeys)
	if err != nil {
		log.Fatal().Err(err).Msg("Bob failed to decrypt the shared folder")
	}
	log.Info().Msg("Alice shared her home folder with Bob")

	fmt.Println()
	fmt.Println("Alice's decrypted home folder:")
	fmt.Print(decryptedHome.Display(0))
	fmt.Println()
	fmt.Println("Bob's view of the shared folder:")
	fmt.Print(bobView.Display(0))

	fmt.Println()
	fmt.Println("Server directory:")
	fmt.Print(srv.DisplayUsers())
}

// registerDemoUser constructs a fresh user, derives the full key hierarchy
// from password, and registers them with srv.
func registerDemoUser(srv *server.Server, name, password string) (*clientState, error) {
	u, err := user.New([]byte(name))
	if err != nil {
		return nil, err
	}
	cs := &clientState{User: u, Password: []byte(password)}

	params := crypto.DefaultParams()
	passwordHash, passwordSalt, err := crypto.HashPassword(cs.Password, nil, params)
	if err != nil {
		return nil, err
	}
	cs.PasswordSalt = passwordSalt

	masterKey, _, err := crypto.HashPassword(passwordHash, nil, params)
	if err != nil {
		return nil, err
	}
	wrappedMasterKey, err := crypto.SymEncrypt(passwordHash, masterKey)
	if err != nil {
		return nil, err
	}

	challengeSalt := crypto.SaltString(u.ID[:])
	challengeHash, _, err := crypto.HashPassword(passwordHash, challengeSalt, params)
	if err != nil {
		return nil, err
	}

	root := store.NewFolder(u.ID[:], u.Name)
	encRoot, err := root.SymEncrypt(masterKey, true)
	if err != nil {
		return nil, err
	}

	if err := srv.AddUser(u, wrappedMasterKey, passwordSalt, challengeSalt, challengeHash, encRoot); err != nil {
		return nil, err
	}

	return cs, nil
}

// login runs the client side of the login flow: rederive the
// password-hash, compute the challenge hash, call the server, then unwrap
// the returned wrapped master key.
func login(srv *server.Server, cs *clientState) (store.Folder, []byte, error) {
	params := crypto.DefaultParams()
	passwordHash, _, err := crypto.HashPassword(cs.Password, cs.PasswordSalt, params)
	if err != nil {
		return store.Folder{}, nil, err
	}

	challengeSalt := crypto.SaltString(cs.User.ID[:])
	challengeHash, _, err := crypto.HashPassword(passwordHash, challengeSalt, params)
	if err != nil {
		return store.Folder{}, nil, err
	}

	encRoot, wrappedMasterKey, err := srv.Login(cs.User.Name, challengeHash)
	if err != nil {
		return store.Folder{}, nil, err
	}

	masterKey, err := crypto.SymDecrypt(passwordHash, wrappedMasterKey)
	if err != nil {
		return store.Folder{}, nil, err
	}

	return encRoot, masterKey, nil
}

// logoutWithPasswordChange re-encrypts the caller's plaintext root folder
// under a freshly derived master key for newPassword and writes both back
// to the server along with a rotated password salt and challenge hash.
// folder must already be fully plaintext; the server never sees anything
// but the resulting ciphertext.
func logoutWithPasswordChange(srv *server.Server, cs *clientState, folder store.Folder, newPassword []byte) error {
	params := crypto.DefaultParams()

	oldPasswordHash, _, err := crypto.HashPassword(cs.Password, cs.PasswordSalt, params)
	if err != nil {
		return err
	}
	oldChallengeSalt := crypto.SaltString(cs.User.ID[:])
	oldChallengeHash, _, err := crypto.HashPassword(oldPasswordHash, oldChallengeSalt, params)
	if err != nil {
		return err
	}

	newPasswordHash, newPasswordSalt, err := crypto.HashPassword(newPassword, nil, params)
	if err != nil {
		return err
	}
	newMasterKey, _, err := crypto.HashPassword(newPasswordHash, nil, params)
	if err != nil {
		return err
	}
	newWrappedMasterKey, err := crypto.SymEncrypt(newPasswordHash, newMasterKey)
	if err != nil {
		return err
	}
	newChallengeHash, _, err := crypto.HashPassword(newPasswordHash, oldChallengeSalt, params)
	if err != nil {
		return err
	}

	encRoot, err := folder.SymEncrypt(newMasterKey, true)
	if err != nil {
		return err
	}

	if err := srv.Logout(cs.User.Name, encRoot, newWrappedMasterKey, oldChallengeHash, newChallengeHash, newPasswordSalt); err != nil {
		return err
	}

	cs.Password = newPassword
	cs.PasswordSalt = newPasswordSalt
	return nil
}

// findHome looks for a plaintext child folder named "home" directly under
// folder, with no decryption step of its own.
func findHome(folder store.Folder) (store.Folder, bool) {
	for _, child := range folder.Folders {
		if string(child.Name) == "home" {
			return child, true
		}
	}
	return store.Folder{}, false
}
