package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/mrlokans/kompanion/internal/storage"
)

var coverExtensions = map[string]string{
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

var coverContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// CoverStore keeps extracted cover images in the blob backend next to the
// books, under covers/<book id>.<ext>.
type CoverStore struct {
	storage storage.Storage
}

// NewCoverStore creates a cover store on top of s.
func NewCoverStore(s storage.Storage) *CoverStore {
	return &CoverStore{storage: s}
}

// Save stores the cover of a book and returns its blob path.
func (c *CoverStore) Save(ctx context.Context, bookID string, cover *Cover) (string, error) {
	if cover == nil || len(cover.Data) == 0 {
		return "", fmt.Errorf("no cover data for %s", bookID)
	}
	ext, ok := coverExtensions[cover.MediaType]
	if !ok {
		return "", fmt.Errorf("unsupported cover type %q", cover.MediaType)
	}

	p := coverPath(bookID, ext)
	if err := c.storage.Write(ctx, bytes.NewReader(cover.Data), p); err != nil {
		return "", err
	}
	return p, nil
}

// Open returns a reader over a stored cover. The caller closes it.
func (c *CoverStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	return c.storage.Read(ctx, p)
}

// Invalidate removes a stored cover. A cover that is already gone is not an
// error.
func (c *CoverStore) Invalidate(ctx context.Context, p string) error {
	if p == "" {
		return nil
	}
	if err := c.storage.Delete(ctx, p); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// CoverContentType maps a stored cover path back to its image type.
func CoverContentType(p string) string {
	if ct, ok := coverContentTypes[path.Ext(p)]; ok {
		return ct
	}
	return "application/octet-stream"
}

func coverPath(bookID, ext string) string {
	return "covers/" + bookID + "." + ext
}
