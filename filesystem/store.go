// Package filesystem provides the read-only file store behind content routes.
// Every lookup goes through an os.Root, so a request can never resolve to a
// file outside the base directory, and paths with ".." segments are rejected
// before they reach the file system.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidPath is returned for request paths that fail validation.
var ErrInvalidPath = errors.New("invalid path")

// File is an opened regular file with the metadata needed to serve it.
type File struct {
	io.ReadSeekCloser

	Name        string
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Store provides sandboxed file lookups below a base directory.
type Store struct {
	root *os.Root
	dir  string
}

// Open opens dir as the store's base directory.
func Open(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("open base directory: %w", err)
	}
	return &Store{root: root, dir: abs}, nil
}

// NewStore wraps an already opened root.
// The root provides sandboxed file operations preventing path traversal.
func NewStore(root *os.Root) *Store {
	return &Store{root: root, dir: root.Name()}
}

// Dir returns the base directory.
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the root.
func (s *Store) Close() error {
	return s.root.Close()
}

// Get opens the regular file at name. Returns an error wrapping
// fs.ErrNotExist when it does not exist or is a directory.
func (s *Store) Get(ctx context.Context, name string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, err := relativePath(name)
	if err != nil {
		return nil, err
	}

	f, err := s.root.Open(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", rel, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}

	info, err := f.Stat()
	if err != nil {
		closeQuietly(f, rel)
		return nil, fmt.Errorf("stat %s: %w", rel, err)
	}
	if info.IsDir() {
		closeQuietly(f, rel)
		return nil, fmt.Errorf("%s is a directory: %w", rel, fs.ErrNotExist)
	}

	return &File{
		ReadSeekCloser: f,
		Name:           rel,
		Size:           info.Size(),
		ModTime:        info.ModTime(),
		ContentType:    detectContentType(rel),
	}, nil
}

// Resolve opens name, or when name is a directory, the first of
// defaultFiles that exists inside it.
func (s *Store) Resolve(ctx context.Context, name string, defaultFiles []string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, err := relativePath(name)
	if err != nil {
		return nil, err
	}

	info, err := s.root.Stat(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", rel, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("stat %s: %w", rel, err)
	}
	if !info.IsDir() {
		return s.Get(ctx, rel)
	}

	for _, def := range defaultFiles {
		def = strings.Trim(def, "/")
		if def == "" {
			continue
		}
		f, err := s.Get(ctx, path.Join(rel, def))
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no default file in %s: %w", rel, fs.ErrNotExist)
}

// relativePath turns a URL path into a root-relative file path.
func relativePath(name string) (string, error) {
	trimmed := strings.Trim(name, "/")
	if trimmed == "" {
		return ".", nil
	}
	if !IsValidPath(trimmed) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidPath)
	}
	return trimmed, nil
}

func closeQuietly(f *os.File, name string) {
	if err := f.Close(); err != nil {
		slog.Warn("failed to close file", "path", name, "err", err)
	}
}

func detectContentType(name string) string {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		return "application/octet-stream"
	}
	return contentType
}
