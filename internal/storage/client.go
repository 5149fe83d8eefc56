// Package storage implements the blob backends shared by book files and
// per-device statistics databases.
//
// Every backend satisfies the same three-operation contract:
//
//	err := s.Write(ctx, src, "device:kobo/statistics.sqlite3")
//	rc, err := s.Read(ctx, "device:kobo/statistics.sqlite3")
//	err = s.Delete(ctx, "device:kobo/statistics.sqlite3")
//
// Writes are atomic with respect to concurrent readers: a reader sees either
// the previous content or the new content in full. Reads hand out a stream
// over bytes that later writes cannot modify.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNotFound is returned when a path was never written or was deleted.
	ErrNotFound = errors.New("blob not found")

	// ErrWriteFailed wraps any failure to publish a blob.
	ErrWriteFailed = errors.New("blob write failed")

	// ErrInvalidPath is returned for empty paths or paths that resolve to nothing.
	ErrInvalidPath = errors.New("invalid blob path")
)

// Storage is the blob backend contract.
type Storage interface {
	// Write stores the full content of src at dst, replacing anything there.
	Write(ctx context.Context, src io.Reader, dst string) error

	// Read opens the content stored at path. The caller closes the reader.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the content stored at path.
	Delete(ctx context.Context, path string) error
}

// Close releases resources held by backends that have any (database
// handles, bolt files). It is a no-op for the rest.
func Close(s Storage) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ReadAll is a convenience wrapper that reads a whole blob into memory.
func ReadAll(ctx context.Context, s Storage, path string) ([]byte, error) {
	rc, err := s.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// normalizePath turns a caller-supplied blob path into the canonical key
// form: forward slashes, no leading slash, no "." or ".." segments.
func normalizePath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return strings.Join(parts, "/"), nil
}

func writeError(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
}
