package acl

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

var (
	// ErrInvalidArgument is returned for an empty or unparseable address.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidMode is returned when the manager's mode is not recognized.
	ErrInvalidMode = errors.New("invalid access control mode")
)

// Mode selects the default policy.
type Mode string

const (
	DefaultPermit Mode = "default-permit"
	DefaultDeny   Mode = "default-deny"
)

// IsValid reports whether m is a recognized mode.
func (m Mode) IsValid() bool {
	switch m {
	case DefaultPermit, DefaultDeny:
		return true
	default:
		return false
	}
}

// ParseMode parses "default-permit" or "default-deny".
func ParseMode(s string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.IsValid() {
		return "", fmt.Errorf("%w: %q (valid modes: default-permit, default-deny)", ErrInvalidMode, s)
	}
	return mode, nil
}

// Manager evaluates a source address against a permit list and a deny list.
type Manager struct {
	Mode       Mode
	PermitList *Matcher
	DenyList   *Matcher
}

// NewManager returns a manager in mode with empty lists.
func NewManager(mode Mode) *Manager {
	return &Manager{
		Mode:       mode,
		PermitList: NewMatcher(),
		DenyList:   NewMatcher(),
	}
}

// Validate reports whether the manager can evaluate requests.
func (m *Manager) Validate() error {
	if !m.Mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m.Mode)
	}
	return nil
}

// Permit reports whether ip may proceed. Under DefaultDeny that means ip is
// on the permit list; under DefaultPermit, that ip is not on the deny list.
func (m *Manager) Permit(ip string) (bool, error) {
	addr, err := ParseAddr(ip)
	if err != nil {
		return false, err
	}

	switch m.Mode {
	case DefaultDeny:
		return m.PermitList.Contains(addr), nil
	case DefaultPermit:
		return !m.DenyList.Contains(addr), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidMode, m.Mode)
	}
}

// ParseAddr parses an address as it appears in a request's source: a bare
// IPv4 or IPv6 address, optionally bracketed or carrying a port.
func ParseAddr(ip string) (netip.Addr, error) {
	s := strings.TrimSpace(ip)
	if s == "" {
		return netip.Addr{}, fmt.Errorf("empty address: %w", ErrInvalidArgument)
	}

	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		host, _, splitErr := net.SplitHostPort(s)
		if splitErr != nil {
			return netip.Addr{}, fmt.Errorf("parse address %q: %w", ip, ErrInvalidArgument)
		}
		addr, err = netip.ParseAddr(host)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("parse address %q: %w", ip, ErrInvalidArgument)
		}
	}
	return addr.Unmap().WithZone(""), nil
}
