package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const stagingDirName = ".staging"

// Filesystem stores blobs as regular files under a base directory.
// Writes land in a staging directory first and are published with a rename,
// so a reader never observes a half-written file.
type Filesystem struct {
	baseDir    string
	stagingDir string
}

// NewFilesystem creates the base and staging directories if needed.
func NewFilesystem(baseDir string) (*Filesystem, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	staging := filepath.Join(abs, stagingDirName)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Filesystem{baseDir: abs, stagingDir: staging}, nil
}

// BaseDir returns the absolute directory blobs are stored under.
func (f *Filesystem) BaseDir() string {
	return f.baseDir
}

// resolve maps a blob path to a location inside baseDir. normalizePath has
// already dropped any ".." segments, so the result cannot escape.
func (f *Filesystem) resolve(path string) (string, error) {
	key, err := normalizePath(path)
	if err != nil {
		return "", err
	}
	if key == stagingDirName || strings.HasPrefix(key, stagingDirName+"/") {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidPath, path)
	}
	return filepath.Join(f.baseDir, filepath.FromSlash(key)), nil
}

func (f *Filesystem) Write(ctx context.Context, src io.Reader, dst string) error {
	target, err := f.resolve(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return writeError(dst, err)
	}

	tmp, err := os.CreateTemp(f.stagingDir, "blob_*")
	if err != nil {
		return writeError(dst, err)
	}
	tmpPath := tmp.Name()
	published := false
	defer func() {
		if !published {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, &contextReader{ctx: ctx, r: src}); err != nil {
		return writeError(dst, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return writeError(dst, err)
	}
	if err := tmp.Sync(); err != nil {
		return writeError(dst, err)
	}
	if err := tmp.Close(); err != nil {
		return writeError(dst, err)
	}
	if err := ctx.Err(); err != nil {
		return writeError(dst, err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return writeError(dst, err)
	}
	published = true
	return nil
}

// Read opens the published file. A later Write renames a new inode over the
// path, so the open handle keeps reading the content it started with.
func (f *Filesystem) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	target, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat blob %s: %w", path, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, ErrNotFound
	}
	return file, nil
}

func (f *Filesystem) Delete(ctx context.Context, path string) error {
	target, err := f.resolve(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("stat blob %s: %w", path, err)
	}
	if info.IsDir() {
		return ErrNotFound
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob %s: %w", path, err)
	}
	return nil
}

// SweepStaging removes staging files older than maxAge. These are left
// behind only when the process dies between creating and publishing a file.
func (f *Filesystem) SweepStaging(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(f.stagingDir)
	if err != nil {
		return 0, fmt.Errorf("read staging dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(f.stagingDir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Storage: failed to remove staging file %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}

// contextReader stops a copy as soon as ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
