package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken       = errors.New("missing token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrNoEmail       = errors.New("token carries no email claim")
	ErrNoVerifierKey = errors.New("verifier needs an HMAC secret or an RSA public key")
)

// VerifierConfig selects how ID tokens are checked. Exactly one of
// HMACSecret or RSAPublicKeyPEM should be set.
type VerifierConfig struct {
	HMACSecret      string
	RSAPublicKeyPEM []byte
	Issuer          string
	Audience        string
	Leeway          time.Duration
}

// Verifier validates ID tokens and reads the identity out of their claims.
type Verifier struct {
	hmacKey []byte
	rsaKey  *rsa.PublicKey
	opts    []jwt.ParserOption
}

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// NewVerifier builds a Verifier. When RSAPublicKeyPEM is set it takes
// precedence over HMACSecret.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{}
	switch {
	case len(cfg.RSAPublicKeyPEM) > 0:
		key, err := jwt.ParseRSAPublicKeyFromPEM(cfg.RSAPublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse rsa public key: %w", err)
		}
		v.rsaKey = key
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
	case cfg.HMACSecret != "":
		v.hmacKey = []byte(cfg.HMACSecret)
		v.opts = append(v.opts, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	default:
		return nil, ErrNoVerifierKey
	}

	leeway := cfg.Leeway
	if leeway == 0 {
		leeway = 30 * time.Second
	}
	v.opts = append(v.opts, jwt.WithLeeway(leeway), jwt.WithExpirationRequired())
	if cfg.Issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.opts = append(v.opts, jwt.WithAudience(cfg.Audience))
	}
	return v, nil
}

// NewVerifierFromFiles reads the RSA key from disk when keyFile is set.
func NewVerifierFromFiles(cfg VerifierConfig, keyFile string) (*Verifier, error) {
	if keyFile != "" {
		pem, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read rsa public key: %w", err)
		}
		cfg.RSAPublicKeyPEM = pem
	}
	return NewVerifier(cfg)
}

// Verify checks the token signature and registered claims, then returns the
// identity it describes. A "Bearer " prefix is accepted.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Identity{}, ErrNoToken
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, v.keyFunc, v.opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if c.Email == "" {
		return Identity{}, ErrNoEmail
	}
	return Identity{Email: c.Email, Subject: c.Subject, Name: c.Name}, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodRSA:
		if v.rsaKey != nil {
			return v.rsaKey, nil
		}
	case *jwt.SigningMethodHMAC:
		if v.hmacKey != nil {
			return v.hmacKey, nil
		}
	}
	return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
}
