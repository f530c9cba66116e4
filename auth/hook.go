package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sagarc03/switchboard"
)

// AccessKeyMetadata is the Context metadata key holding the authenticated
// access key.
const AccessKeyMetadata = "auth.access_key"

// Authenticator is one credential scheme.
type Authenticator interface {
	// Scheme names the scheme in logs.
	Scheme() string
	// Applies reports whether r carries credentials for this scheme.
	Applies(r *switchboard.Request) bool
	// Authenticate returns the access key that r is authenticated as.
	Authenticate(r *switchboard.Request) (string, error)
	// Challenge is the WWW-Authenticate value for this scheme, or "".
	Challenge() string
}

// Config configures NewHook.
type Config struct {
	Authenticators []Authenticator

	// PublicPaths are path prefixes that skip authentication.
	PublicPaths []string

	Logger *slog.Logger
}

// NewHook returns an AuthenticateRequest hook. The first authenticator that
// applies to a request decides it; requests nothing applies to are rejected.
func NewHook(cfg Config) switchboard.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var challenges []string
	for _, a := range cfg.Authenticators {
		if ch := a.Challenge(); ch != "" {
			challenges = append(challenges, ch)
		}
	}

	return func(c *switchboard.Context) error {
		if isPublic(c.Request.Path, cfg.PublicPaths) {
			return nil
		}

		err := ErrNoCredentials
		for _, a := range cfg.Authenticators {
			if !a.Applies(c.Request) {
				continue
			}
			key, aerr := a.Authenticate(c.Request)
			if aerr == nil {
				c.Set(AccessKeyMetadata, key)
				return nil
			}
			logger.Info("authentication failed",
				"request_id", c.ID.String(),
				"scheme", a.Scheme(),
				"path", c.Request.Path,
				"error", aerr,
			)
			err = aerr
			break
		}

		return reject(c, challenges, err)
	}
}

func reject(c *switchboard.Context, challenges []string, err error) error {
	for _, ch := range challenges {
		c.Response.Headers.Add("WWW-Authenticate", ch)
	}
	msg := "Authentication required"
	if !errors.Is(err, ErrNoCredentials) {
		msg = "Invalid credentials"
	}
	return switchboard.WriteError(c, http.StatusUnauthorized, "unauthorized", msg)
}

func isPublic(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}
