// Package library stores uploaded books in the blob backend and keeps their
// metadata in a repository.
//
// A book's DocumentID is the partial MD5 KOReader computes for the same
// file, which is also the key of its progress records.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/mrlokans/kompanion/internal/entities"
	"github.com/mrlokans/kompanion/internal/storage"
)

// Repository persists book metadata.
type Repository interface {
	Create(ctx context.Context, book *entities.Book) error
	GetByID(ctx context.Context, id string) (*entities.Book, error)
	GetByDocumentID(ctx context.Context, documentID string) (*entities.Book, error)
	List(ctx context.Context, opts ListOptions) ([]entities.Book, int64, error)
	Update(ctx context.Context, book *entities.Book) error
	Delete(ctx context.Context, id string) error
}

// Page is one page of List results.
type Page struct {
	Items      []entities.Book `json:"items"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	TotalCount int64           `json:"total_count"`
	TotalPages int             `json:"total_pages"`
}

// Shelf ties book files to their metadata.
type Shelf struct {
	storage storage.Storage
	covers  *CoverStore
	repo    Repository
}

func NewShelf(s storage.Storage, repo Repository) *Shelf {
	return &Shelf{storage: s, covers: NewCoverStore(s), repo: repo}
}

// Store saves an uploaded book. Title and author fall back to the EPUB
// metadata and then to the filename. An EPUB's cover image is stored as a
// blob of its own.
func (s *Shelf) Store(ctx context.Context, r io.Reader, filename string, meta Metadata) (*entities.Book, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "kompanion-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create upload staging file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if size == 0 {
		return nil, ErrEmptyFile
	}

	documentID, err := PartialMD5(tmp)
	if err != nil {
		return nil, fmt.Errorf("hash upload: %w", err)
	}
	if existing, err := s.repo.GetByDocumentID(ctx, documentID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrBookExists, existing.ID)
	} else if !errors.Is(err, ErrBookNotFound) {
		return nil, err
	}

	var embedded Metadata
	var cover *Cover
	if format == entities.BookFormatEPUB {
		embedded, cover, err = readEPUB(tmp, size)
		if err != nil {
			log.Printf("Library: could not read metadata from %s: %v", filename, err)
		}
	}
	meta = completeMetadata(meta, embedded, filename)

	id := uuid.NewString()
	book := &entities.Book{
		ID:         id,
		Title:      meta.Title,
		Author:     meta.Author,
		Publisher:  meta.Publisher,
		ISBN:       meta.ISBN,
		Language:   meta.Language,
		DocumentID: documentID,
		Format:     format,
		FilePath:   "books/" + id + "." + string(format),
		Size:       size,
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}
	if err := s.storage.Write(ctx, tmp, book.FilePath); err != nil {
		return nil, err
	}
	if cover != nil {
		if book.CoverPath, err = s.covers.Save(ctx, id, cover); err != nil {
			log.Printf("Library: skipping cover of %s: %v", filename, err)
		}
	}
	if err := s.repo.Create(ctx, book); err != nil {
		cleanup := context.WithoutCancel(ctx)
		if delErr := s.storage.Delete(cleanup, book.FilePath); delErr != nil {
			log.Printf("Library: failed to remove orphaned blob %s: %v", book.FilePath, delErr)
		}
		if delErr := s.covers.Invalidate(cleanup, book.CoverPath); delErr != nil {
			log.Printf("Library: failed to remove orphaned cover %s: %v", book.CoverPath, delErr)
		}
		return nil, err
	}

	log.Printf("Library: stored %q (%s, %d bytes) as %s", book.Title, book.Format, book.Size, book.ID)
	return book, nil
}

func completeMetadata(meta, embedded Metadata, filename string) Metadata {
	meta = trimMetadata(meta)
	meta = mergeMetadata(meta, embedded)
	return mergeMetadata(meta, MetadataFromFilename(filename))
}

func trimMetadata(m Metadata) Metadata {
	return Metadata{
		Title:     strings.TrimSpace(m.Title),
		Author:    strings.TrimSpace(m.Author),
		Publisher: strings.TrimSpace(m.Publisher),
		ISBN:      strings.TrimSpace(m.ISBN),
		Language:  strings.TrimSpace(m.Language),
	}
}

// mergeMetadata fills the empty fields of primary from fallback.
func mergeMetadata(primary, fallback Metadata) Metadata {
	if primary.Title == "" {
		primary.Title = fallback.Title
	}
	if primary.Author == "" {
		primary.Author = fallback.Author
	}
	if primary.Publisher == "" {
		primary.Publisher = fallback.Publisher
	}
	if primary.ISBN == "" {
		primary.ISBN = fallback.ISBN
	}
	if primary.Language == "" {
		primary.Language = fallback.Language
	}
	return primary
}

// List returns one page of books.
func (s *Shelf) List(ctx context.Context, opts ListOptions) (*Page, error) {
	opts = opts.Normalize()
	books, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if books == nil {
		books = []entities.Book{}
	}
	return &Page{
		Items:      books,
		Page:       opts.Page,
		PerPage:    opts.PerPage,
		TotalCount: total,
		TotalPages: int(math.Ceil(float64(total) / float64(opts.PerPage))),
	}, nil
}

func (s *Shelf) Get(ctx context.Context, id string) (*entities.Book, error) {
	return s.repo.GetByID(ctx, id)
}

// Open returns the book and a reader over its file. The caller closes it.
func (s *Shelf) Open(ctx context.Context, id string) (*entities.Book, io.ReadCloser, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.Read(ctx, book.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", book.FilePath, err)
	}
	return book, rc, nil
}

// Update changes a book's metadata. Empty fields keep their stored value.
func (s *Shelf) Update(ctx context.Context, id string, meta Metadata) (*entities.Book, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	current := Metadata{
		Title:     book.Title,
		Author:    book.Author,
		Publisher: book.Publisher,
		ISBN:      book.ISBN,
		Language:  book.Language,
	}
	merged := mergeMetadata(trimMetadata(meta), current)
	book.Title = merged.Title
	book.Author = merged.Author
	book.Publisher = merged.Publisher
	book.ISBN = merged.ISBN
	book.Language = merged.Language

	if err := s.repo.Update(ctx, book); err != nil {
		return nil, fmt.Errorf("update book %s: %w", id, err)
	}
	log.Printf("Library: updated metadata of %q (%s)", book.Title, book.ID)
	return book, nil
}

// Cover returns a reader over the book's cover image and its content type.
// The caller closes it.
func (s *Shelf) Cover(ctx context.Context, id string) (io.ReadCloser, string, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !book.HasCover() {
		return nil, "", ErrCoverNotFound
	}

	rc, err := s.covers.Open(ctx, book.CoverPath)
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("Library: cover blob %s of %s is missing", book.CoverPath, book.ID)
		return nil, "", ErrCoverNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", book.CoverPath, err)
	}
	return rc, CoverContentType(book.CoverPath), nil
}

// Delete removes the file, then the cover, then the metadata row. A file
// that is already gone is not an error. If the file cannot be removed the
// row stays, so the delete can be retried.
func (s *Shelf) Delete(ctx context.Context, id string) error {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, book.FilePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", book.FilePath, err)
	}
	if err := s.covers.Invalidate(ctx, book.CoverPath); err != nil {
		log.Printf("Library: failed to remove cover %s: %v", book.CoverPath, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.Printf("Library: deleted %q (%s)", book.Title, book.ID)
	return nil
}

// DownloadName is the filename offered to clients for a book.
func DownloadName(book *entities.Book) string {
	return SanitizeFilename(book.Title) + "." + string(book.Format)
}
