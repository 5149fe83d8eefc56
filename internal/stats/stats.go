// Package stats exchanges KOReader's statistics.sqlite3 file per device.
//
// The file is stored as an opaque blob under the uploading principal's
// namespace and is never parsed.
package stats

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/mrlokans/kompanion/internal/storage"
)

// FileName is the name KOReader uses for its statistics database.
const FileName = "statistics.sqlite3"

var (
	ErrNoStatistics = errors.New("no statistics uploaded")
	ErrEmptyUpload  = errors.New("statistics upload is empty")
	ErrNoPrincipal  = errors.New("principal is required")
)

// Service maps statistics transfers onto a blob backend.
type Service struct {
	storage storage.Storage
}

func NewService(s storage.Storage) *Service {
	return &Service{storage: s}
}

// StatisticsPath is the blob path of a principal's statistics file.
func StatisticsPath(principal string) string {
	return "device:" + principal + "/" + FileName
}

// Upload replaces the principal's statistics file with the content of r.
func (s *Service) Upload(ctx context.Context, principal string, r io.Reader) error {
	if principal == "" {
		return ErrNoPrincipal
	}

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyUpload
		}
		return fmt.Errorf("read statistics upload: %w", err)
	}

	if err := s.storage.Write(ctx, br, StatisticsPath(principal)); err != nil {
		return err
	}
	log.Printf("Stats: stored statistics for %s", principal)
	return nil
}

// Download opens the principal's statistics file. The caller closes it.
func (s *Service) Download(ctx context.Context, principal string) (io.ReadCloser, error) {
	if principal == "" {
		return nil, ErrNoPrincipal
	}
	rc, err := s.storage.Read(ctx, StatisticsPath(principal))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNoStatistics, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read statistics for %s: %w", principal, err)
	}
	return rc, nil
}

// Exists reports whether the principal has uploaded statistics.
func (s *Service) Exists(ctx context.Context, principal string) (bool, error) {
	rc, err := s.Download(ctx, principal)
	if errors.Is(err, ErrNoStatistics) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	rc.Close()
	return true, nil
}

// Purge deletes the principal's statistics file. A missing file is fine.
func (s *Service) Purge(ctx context.Context, principal string) error {
	if principal == "" {
		return ErrNoPrincipal
	}
	err := s.storage.Delete(ctx, StatisticsPath(principal))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete statistics for %s: %w", principal, err)
	}
	if err == nil {
		log.Printf("Stats: purged statistics for %s", principal)
	}
	return nil
}
