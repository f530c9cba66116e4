// Package keybackend holds the access-key/secret pairs consulted by the
// authentication hooks.
package keybackend

import (
	"fmt"
	"slices"
	"sync"

	"github.com/sagarc03/switchboard"
)

// MapSecretStore keeps keys in memory. It is safe for concurrent use; keys
// may be rotated while the server runs.
type MapSecretStore struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewMapSecretStore copies keys into a new store.
func NewMapSecretStore(keys map[string]string) *MapSecretStore {
	s := &MapSecretStore{keys: make(map[string]string, len(keys))}
	for k, v := range keys {
		s.keys[k] = v
	}
	return s
}

// Lookup returns the secret for accessKey. A missing key is both
// ErrKeyNotFound and switchboard.ErrUnauthorized.
func (s *MapSecretStore) Lookup(accessKey string) (string, error) {
	s.mu.RLock()
	secretKey, found := s.keys[accessKey]
	s.mu.RUnlock()
	if !found {
		return "", fmt.Errorf("%w: %w", ErrKeyNotFound, switchboard.ErrUnauthorized)
	}
	return secretKey, nil
}

// Put adds or replaces a key. Empty keys or secrets are ignored.
func (s *MapSecretStore) Put(accessKey, secretKey string) {
	if accessKey == "" || secretKey == "" {
		return
	}
	s.mu.Lock()
	s.keys[accessKey] = secretKey
	s.mu.Unlock()
}

// Delete removes a key and reports whether it existed.
func (s *MapSecretStore) Delete(accessKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[accessKey]
	delete(s.keys, accessKey)
	return ok
}

// AccessKeys returns the stored access keys, sorted.
func (s *MapSecretStore) AccessKeys() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Len returns the number of keys.
func (s *MapSecretStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
