package crypto

import (
	"bytes"
	"testing"

	"github.com/TitusVM/safestore/safeerr"
)

func mustKeyPair(t *testing.T) KeyPair {
	t.Helper()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}
	return kp
}

func TestGenerateKeyPair(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)

	if a.Public == b.Public || a.Secret == b.Secret {
		t.Fatal("two GenerateKeyPair() calls returned overlapping key material")
	}
}

func TestAsymRoundTrip(t *testing.T) {
	alice := mustKeyPair(t)
	bob := mustKeyPair(t)

	tests := []struct {
		name string
		pt   []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("hello bob")},
		{"key-sized", bytes.Repeat([]byte{0xaa}, 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := AsymEncrypt(&alice.Secret, &bob.Public, tt.pt)
			if err != nil {
				t.Fatalf("AsymEncrypt() failed: %v", err)
			}

			got, err := AsymDecrypt(&alice.Public, &bob.Secret, blob)
			if err != nil {
				t.Fatalf("AsymDecrypt() failed: %v", err)
			}
			if !bytes.Equal(got, tt.pt) {
				t.Fatalf("round trip mismatch:\ngot:  %q\nwant: %q", got, tt.pt)
			}
		})
	}
}

func TestAsymEncryptFreshNonce(t *testing.T) {
	alice := mustKeyPair(t)
	bob := mustKeyPair(t)
	pt := []byte("same plaintext")

	b1, err := AsymEncrypt(&alice.Secret, &bob.Public, pt)
	if err != nil {
		t.Fatalf("AsymEncrypt() failed: %v", err)
	}
	b2, err := AsymEncrypt(&alice.Secret, &bob.Public, pt)
	if err != nil {
		t.Fatalf("AsymEncrypt() failed: %v", err)
	}
	if bytes.Equal(b1, b2) {
		t.Fatal("two box encryptions of the same plaintext produced identical blobs")
	}
}

func TestAsymDecryptWrongRecipient(t *testing.T) {
	alice := mustKeyPair(t)
	bob := mustKeyPair(t)
	eve := mustKeyPair(t)

	blob, err := AsymEncrypt(&alice.Secret, &bob.Public, []byte("for bob only"))
	if err != nil {
		t.Fatalf("AsymEncrypt() failed: %v", err)
	}

	if _, err := AsymDecrypt(&alice.Public, &eve.Secret, blob); !safeerr.IsCryptoFailure(err) {
		t.Fatalf("AsymDecrypt() with wrong recipient key: got %v, want CryptoFailure", err)
	}
}

func TestAsymDecryptWrongSender(t *testing.T) {
	alice := mustKeyPair(t)
	bob := mustKeyPair(t)
	eve := mustKeyPair(t)

	blob, err := AsymEncrypt(&alice.Secret, &bob.Public, []byte("from alice"))
	if err != nil {
		t.Fatalf("AsymEncrypt() failed: %v", err)
	}

	if _, err := AsymDecrypt(&eve.Public, &bob.Secret, blob); !safeerr.IsCryptoFailure(err) {
		t.Fatalf("AsymDecrypt() authenticating against wrong sender: got %v, want CryptoFailure", err)
	}
}

func TestAsymDecryptTruncated(t *testing.T) {
	alice := mustKeyPair(t)
	bob := mustKeyPair(t)

	if _, err := AsymDecrypt(&alice.Public, &bob.Secret, make([]byte, 10)); !safeerr.IsCryptoFailure(err) {
		t.Fatalf("AsymDecrypt() of truncated blob: got %v, want CryptoFailure", err)
	}
}
