package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sagarc03/switchboard"
	"github.com/sagarc03/switchboard/keybackend"
)

// Basic authenticates HTTP Basic credentials against a key store.
type Basic struct {
	Store keybackend.SecretStore
	Realm string
}

// NewBasic returns a Basic authenticator. An empty realm becomes
// "switchboard".
func NewBasic(store keybackend.SecretStore, realm string) *Basic {
	if realm == "" {
		realm = "switchboard"
	}
	return &Basic{Store: store, Realm: realm}
}

// Scheme implements Authenticator.
func (b *Basic) Scheme() string { return "basic" }

// Challenge implements Authenticator.
func (b *Basic) Challenge() string {
	return fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", b.Realm)
}

// Applies implements Authenticator.
func (b *Basic) Applies(r *switchboard.Request) bool {
	scheme, _, _ := strings.Cut(r.Header("Authorization"), " ")
	return strings.EqualFold(scheme, "Basic")
}

// Authenticate implements Authenticator.
func (b *Basic) Authenticate(r *switchboard.Request) (string, error) {
	user, pass, err := parseBasic(r.Header("Authorization"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", err, switchboard.ErrUnauthorized)
	}

	secret, err := b.Store.Lookup(user)
	if err != nil {
		return "", fmt.Errorf("invalid access key: %w", switchboard.ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(pass)) != 1 {
		return "", fmt.Errorf("invalid secret: %w", switchboard.ErrUnauthorized)
	}
	return user, nil
}

func parseBasic(header string) (user, pass string, err error) {
	scheme, encoded, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return "", "", errBadBasicHeader
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", errBadBasicHeader
	}
	user, pass, ok = strings.Cut(string(decoded), ":")
	if !ok || user == "" {
		return "", "", errBadBasicHeader
	}
	return user, pass, nil
}
