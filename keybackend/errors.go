package keybackend

import "errors"

var (
	// ErrKeyNotFound is returned when the access key does not exist in the store.
	ErrKeyNotFound = errors.New("access key not found")

	// ErrInvalidKeyFile is returned when a key file cannot be decoded.
	ErrInvalidKeyFile = errors.New("invalid key file")
)
