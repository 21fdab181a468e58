// Package identity turns an already-issued ID token into the user identity
// the dashboard scans for, and derives the target domain from its email.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidDomain is returned when no domain can be derived from an email.
var ErrInvalidDomain = errors.New("cannot extract domain from email address")

// Identity is the authenticated user as supplied by the identity provider.
type Identity struct {
	Email   string `json:"email"`
	Subject string `json:"sub,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Key is the email sessions and coordinators are keyed by: trimmed and
// lower-cased, so case variants of one address share state.
func (id Identity) Key() string {
	return strings.ToLower(strings.TrimSpace(id.Email))
}

// Domain derives the scan target from the identity's email.
func (id Identity) Domain() (string, error) {
	return DomainFromEmail(id.Email)
}

// DomainFromEmail returns the text after the last '@', lower-cased and
// converted to its ASCII (punycode) form. "user@example.com" yields exactly
// "example.com". A quoted local part may itself contain '@', so the domain
// always follows the last one.
func DomainFromEmail(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "", fmt.Errorf("%w: %q has no '@'", ErrInvalidDomain, email)
	}
	host := strings.ToLower(strings.TrimSpace(email[at+1:]))
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("%w: %q has an empty domain", ErrInvalidDomain, email)
	}

	puny, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	return puny, nil
}
