package internal

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

const authHeader = "Drawsrv-Admin-Auth"

// nonces older or newer than this are rejected
const nonceWindow = time.Minute

var (
	ErrNoToken      = errors.New("no auth token")
	ErrBadSignature = errors.New("bad signature")
	ErrStaleToken   = errors.New("stale auth token")
)

type (
	RequestSigner   = func(r *http.Request, subject string) error
	RequestVerifier = func(r *http.Request) (string, error)
)

// NewRequestSigner signs admin requests. The subject names the action and its
// target so a captured token cannot be replayed against another user.
func NewRequestSigner(privateKey ed25519.PrivateKey) RequestSigner {
	return func(r *http.Request, subject string) error {
		nonce, err := ksuid.NewRandom()
		if err != nil {
			return err
		}
		sign(r, privateKey, nonce, subject)
		return nil
	}
}

func sign(r *http.Request, privateKey ed25519.PrivateKey, nonce ksuid.KSUID, subject string) {
	msg := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%v_%v", nonce.String(), subject)))
	sig := base64.RawURLEncoding.EncodeToString(ed25519.Sign(privateKey, []byte(msg)))
	r.Header.Set(authHeader, fmt.Sprintf("%v.%v", msg, sig))
}

func NewRequestVerifier(publicKey ed25519.PublicKey) RequestVerifier {
	return func(r *http.Request) (string, error) {
		token := r.Header.Get(authHeader)
		if token == "" {
			return "", ErrNoToken
		}

		msg, encSig, ok := strings.Cut(token, ".")
		if !ok {
			return "", ErrBadSignature
		}
		sig, err := base64.RawURLEncoding.DecodeString(encSig)
		if err != nil || !ed25519.Verify(publicKey, []byte(msg), sig) {
			return "", ErrBadSignature
		}

		b, err := base64.RawURLEncoding.DecodeString(msg)
		if err != nil {
			return "", ErrBadSignature
		}
		encNonce, subject, ok := strings.Cut(string(b), "_")
		if !ok {
			return "", ErrBadSignature
		}

		nonce := ksuid.KSUID{}
		if err := nonce.UnmarshalText([]byte(encNonce)); err != nil {
			return "", ErrBadSignature
		}
		if d := time.Since(nonce.Time()); d > nonceWindow || d < -nonceWindow {
			return "", ErrStaleToken
		}

		return subject, nil
	}
}
