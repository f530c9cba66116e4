package acl

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
)

// Matcher is an address list of single IPs and CIDR ranges.
//
// Read path (Contains) is lock-free. Writes are serialized and publish a
// new snapshot atomically.
type Matcher struct {
	mu   sync.Mutex
	snap atomic.Pointer[matcherSnapshot]
}

type matcherEntry struct {
	raw    string
	prefix netip.Prefix
}

type matcherSnapshot struct {
	entries []matcherEntry
}

// NewMatcher creates an empty list.
func NewMatcher() *Matcher {
	m := &Matcher{}
	m.snap.Store(&matcherSnapshot{})
	return m
}

func (m *Matcher) load() *matcherSnapshot {
	if s := m.snap.Load(); s != nil {
		return s
	}
	return &matcherSnapshot{}
}

// Add adds a single IP ("192.168.1.1", "2001:db8::1") or a CIDR
// ("10.0.0.0/8"). Adding an entry already present is a no-op.
func (m *Matcher) Add(entry string) error {
	e, err := parseEntry(entry)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.load()
	for _, existing := range cur.entries {
		if existing.prefix == e.prefix {
			return nil
		}
	}
	next := make([]matcherEntry, 0, len(cur.entries)+1)
	next = append(next, cur.entries...)
	next = append(next, e)
	m.snap.Store(&matcherSnapshot{entries: next})
	return nil
}

// Remove deletes an entry. It reports whether the entry was present.
func (m *Matcher) Remove(entry string) bool {
	e, err := parseEntry(entry)
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.load()
	next := make([]matcherEntry, 0, len(cur.entries))
	removed := false
	for _, existing := range cur.entries {
		if existing.prefix == e.prefix {
			removed = true
			continue
		}
		next = append(next, existing)
	}
	if removed {
		m.snap.Store(&matcherSnapshot{entries: next})
	}
	return removed
}

// Update replaces the whole list. Entries are validated first; on error the
// list is left unchanged.
func (m *Matcher) Update(entries []string) error {
	next := make([]matcherEntry, 0, len(entries))
	seen := make(map[netip.Prefix]bool, len(entries))
	for _, raw := range entries {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		e, err := parseEntry(raw)
		if err != nil {
			return err
		}
		if seen[e.prefix] {
			continue
		}
		seen[e.prefix] = true
		next = append(next, e)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Store(&matcherSnapshot{entries: next})
	return nil
}

// Exists reports whether entry is on the list as written (after
// normalization), not whether an address is covered by it.
func (m *Matcher) Exists(entry string) bool {
	e, err := parseEntry(entry)
	if err != nil {
		return false
	}
	for _, existing := range m.load().entries {
		if existing.prefix == e.prefix {
			return true
		}
	}
	return false
}

// Contains reports whether addr falls in any entry.
func (m *Matcher) Contains(addr netip.Addr) bool {
	if m == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, e := range m.load().entries {
		if e.prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Match parses ip and reports whether it falls in any entry.
func (m *Matcher) Match(ip string) (bool, error) {
	addr, err := ParseAddr(ip)
	if err != nil {
		return false, err
	}
	return m.Contains(addr), nil
}

// All returns the entries in insertion order.
func (m *Matcher) All() []string {
	entries := m.load().entries
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out
}

// Len returns the number of entries.
func (m *Matcher) Len() int {
	return len(m.load().entries)
}

func parseEntry(raw string) (matcherEntry, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return matcherEntry{}, fmt.Errorf("empty list entry: %w", ErrInvalidArgument)
	}

	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return matcherEntry{}, fmt.Errorf("parse CIDR %q: %w", raw, ErrInvalidArgument)
		}
		if prefix.Addr().Is4In6() {
			bits := prefix.Bits() - 96
			if bits < 0 {
				return matcherEntry{}, fmt.Errorf("parse CIDR %q: %w", raw, ErrInvalidArgument)
			}
			prefix = netip.PrefixFrom(prefix.Addr().Unmap(), bits)
		}
		prefix = prefix.Masked()
		return matcherEntry{raw: prefix.String(), prefix: prefix}, nil
	}

	addr, err := ParseAddr(s)
	if err != nil {
		return matcherEntry{}, err
	}
	prefix := netip.PrefixFrom(addr, addr.BitLen())
	return matcherEntry{raw: addr.String(), prefix: prefix}, nil
}
