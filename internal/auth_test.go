package internal

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"testing"
	"time"

	"github.com/segmentio/ksuid"
)

func TestAuth(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	signer := NewRequestSigner(privateKey)
	verifier := NewRequestVerifier(publicKey)

	req, err := http.NewRequest(http.MethodPost, "https://example.com/users/2/kick", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := verifier(req); err != ErrNoToken {
		t.Errorf("unsigned request: %v", err)
	}

	if err := signer(req, "force_snapshot"); err != nil {
		t.Fatal(err)
	}

	subject, err := verifier(req)
	if err != nil {
		t.Fatal(err)
	}
	if subject != "force_snapshot" {
		t.Errorf("subject %q", subject)
	}
}

func TestAuthRejectsOtherKeys(t *testing.T) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	otherKey, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, "https://example.com", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewRequestSigner(privateKey)(req, "lock:2"); err != nil {
		t.Fatal(err)
	}

	if _, err := NewRequestVerifier(otherKey)(req); err != ErrBadSignature {
		t.Errorf("foreign signature: %v", err)
	}

	req.Header.Set(authHeader, "garbage")
	if _, err := NewRequestVerifier(otherKey)(req); err != ErrBadSignature {
		t.Errorf("garbage token: %v", err)
	}
}

func TestAuthRejectsStaleNonce(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	nonce, err := ksuid.NewRandomWithTime(time.Now().Add(-5 * time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, "https://example.com", nil)
	if err != nil {
		t.Fatal(err)
	}
	sign(req, privateKey, nonce, "kick:3")

	if _, err := NewRequestVerifier(publicKey)(req); err != ErrStaleToken {
		t.Errorf("stale token: %v", err)
	}
}
