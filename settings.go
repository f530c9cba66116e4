package switchboard

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sagarc03/switchboard/acl"
)

// Settings configures a Server.
type Settings struct {
	Hostname string
	Port     int

	// KeepAlive lets the native listener serve several requests per
	// connection.
	KeepAlive bool

	IO      IOSettings
	Headers HeaderSettings

	// AccessControl gates every request by source address. Nil disables
	// the gate.
	AccessControl *acl.Manager

	// DenyStatus is sent when access control rejects a request: 401 or
	// 403. Zero means 403.
	DenyStatus int

	Debug  DebugSettings
	Logger *slog.Logger
}

// IOSettings bounds reads and writes.
type IOSettings struct {
	BufferSize         int
	MaxRequestBodySize int64
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
}

// HeaderSettings holds the headers every response starts with.
type HeaderSettings struct {
	DefaultHeaders map[string]string
}

// DebugSettings enables extra debug logging per concern.
type DebugSettings struct {
	AccessControl bool
	Routing       bool
	Requests      bool
	Responses     bool
}

// DefaultHeaders are applied to every response unless a handler overrides
// them.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "OPTIONS, HEAD, GET, PUT, POST, DELETE, PATCH",
		"Access-Control-Allow-Headers": "*",
		"Cache-Control":                "no-cache",
	}
}

// NewSettings returns settings for hostname:port with defaults applied.
func NewSettings(hostname string, port int) *Settings {
	return &Settings{
		Hostname: hostname,
		Port:     port,
		IO: IOSettings{
			BufferSize:   defaultBufferSize,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Headers:       HeaderSettings{DefaultHeaders: DefaultHeaders()},
		AccessControl: acl.NewManager(acl.DefaultPermit),
		DenyStatus:    http.StatusForbidden,
	}
}

// Addr is the listen address.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Hostname, strconv.Itoa(s.Port))
}

// Validate reports configuration errors.
func (s *Settings) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range: %w", s.Port, ErrInvalidConfig)
	}
	if s.IO.BufferSize < 0 {
		return fmt.Errorf("buffer size %d: %w", s.IO.BufferSize, ErrInvalidConfig)
	}
	if s.IO.MaxRequestBodySize < 0 {
		return fmt.Errorf("max request body size %d: %w", s.IO.MaxRequestBodySize, ErrInvalidConfig)
	}
	switch s.DenyStatus {
	case 0, http.StatusUnauthorized, http.StatusForbidden:
	default:
		return fmt.Errorf("deny status %d must be 401 or 403: %w", s.DenyStatus, ErrInvalidConfig)
	}
	if s.AccessControl != nil {
		if err := s.AccessControl.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func (s *Settings) denyStatus() int {
	if s.DenyStatus == 0 {
		return http.StatusForbidden
	}
	return s.DenyStatus
}

func (s *Settings) defaultHeader() http.Header {
	h := make(http.Header, len(s.Headers.DefaultHeaders))
	for k, v := range s.Headers.DefaultHeaders {
		if v == "" {
			continue
		}
		h.Set(k, v)
	}
	return h
}

func (s *Settings) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
