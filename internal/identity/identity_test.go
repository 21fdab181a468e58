package identity_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/raysh454/secboard/internal/identity"
)

func TestDomainFromEmail(t *testing.T) {
	t.Parallel()

	cases := []struct {
		email string
		want  string
	}{
		{"user@example.com", "example.com"},
		{"User@Example.COM", "example.com"},
		{"weird@name@corp.example.org", "corp.example.org"},
		{"a@bücher.example", "xn--bcher-kva.example"},
	}
	for _, tc := range cases {
		got, err := identity.DomainFromEmail(tc.email)
		if err != nil {
			t.Errorf("DomainFromEmail(%q): %v", tc.email, err)
			continue
		}
		if got != tc.want {
			t.Errorf("DomainFromEmail(%q) = %q, want %q", tc.email, got, tc.want)
		}
	}
}

func TestDomainFromEmail_Invalid(t *testing.T) {
	t.Parallel()

	for _, email := range []string{"", "no-at-sign", "user@", "user@ "} {
		if _, err := identity.DomainFromEmail(email); !errors.Is(err, identity.ErrInvalidDomain) {
			t.Errorf("DomainFromEmail(%q): expected ErrInvalidDomain, got %v", email, err)
		}
	}
}

func TestIdentity_KeyFoldsCase(t *testing.T) {
	t.Parallel()

	a := identity.Identity{Email: " User@Example.COM "}
	b := identity.Identity{Email: "user@example.com"}
	if a.Key() != b.Key() || b.Key() != "user@example.com" {
		t.Errorf("keys differ: %q vs %q", a.Key(), b.Key())
	}
}

// ─── Verifier ───

func sign(t *testing.T, method jwt.SigningMethod, key any, c jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, c).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestVerifier_HMAC(t *testing.T) {
	t.Parallel()

	v, err := identity.NewVerifier(identity.VerifierConfig{HMACSecret: "s3cret", Issuer: "https://idp.example", Audience: "secboard"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	tok := sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{
		"email": "alice@example.com",
		"name":  "Alice",
		"sub":   "u-1",
		"iss":   "https://idp.example",
		"aud":   "secboard",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	id, err := v.Verify("Bearer " + tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Email != "alice@example.com" || id.Subject != "u-1" || id.Name != "Alice" {
		t.Errorf("unexpected identity %+v", id)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()

	v, err := identity.NewVerifier(identity.VerifierConfig{HMACSecret: "s3cret", Audience: "secboard"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	exp := time.Now().Add(time.Hour).Unix()

	cases := map[string]string{
		"wrong secret": sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"email": "a@b.c", "aud": "secboard", "exp": exp}),
		"expired":      sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{"email": "a@b.c", "aud": "secboard", "exp": time.Now().Add(-time.Hour).Unix()}),
		"wrong aud":    sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{"email": "a@b.c", "aud": "other", "exp": exp}),
		"no exp":       sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{"email": "a@b.c", "aud": "secboard"}),
	}
	for name, tok := range cases {
		if _, err := v.Verify(tok); !errors.Is(err, identity.ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}

	if _, err := v.Verify(""); !errors.Is(err, identity.ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
	noEmail := sign(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.MapClaims{"aud": "secboard", "exp": exp})
	if _, err := v.Verify(noEmail); !errors.Is(err, identity.ErrNoEmail) {
		t.Errorf("expected ErrNoEmail, got %v", err)
	}
}

func TestVerifier_RSA(t *testing.T) {
	t.Parallel()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := identity.NewVerifier(identity.VerifierConfig{RSAPublicKeyPEM: pubPEM})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	tok := sign(t, jwt.SigningMethodRS256, priv, jwt.MapClaims{"email": "bob@example.org", "exp": time.Now().Add(time.Hour).Unix()})
	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Email != "bob@example.org" {
		t.Errorf("unexpected email %q", id.Email)
	}

	// An HMAC token signed with the public key bytes must not pass.
	forged := sign(t, jwt.SigningMethodHS256, pubPEM, jwt.MapClaims{"email": "eve@example.org", "exp": time.Now().Add(time.Hour).Unix()})
	if _, err := v.Verify(forged); !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("expected forged token to be rejected, got %v", err)
	}
}

func TestNewVerifier_RequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := identity.NewVerifier(identity.VerifierConfig{}); !errors.Is(err, identity.ErrNoVerifierKey) {
		t.Errorf("expected ErrNoVerifierKey, got %v", err)
	}
}
