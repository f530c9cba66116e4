package auth

import (
	"errors"
	"fmt"

	"github.com/sagarc03/switchboard"
)

// ErrNoCredentials is returned when a request carries no credentials any
// configured authenticator understands.
var ErrNoCredentials = fmt.Errorf("no credentials: %w", switchboard.ErrUnauthorized)

var errBadBasicHeader = errors.New("malformed basic authorization header")
