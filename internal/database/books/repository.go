// Package books provides database operations for the book shelf.
//
// This package implements the Repository interface defined in
// internal/library/shelf.go.
//
// # Interface Implementation
//
//	var _ library.Repository = (*Repository)(nil)
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.GetByID(ctx, "0f8fad5b-d9cb-469f-a165-70867728950e")
package books

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/kompanion/internal/entities"
	"github.com/mrlokans/kompanion/internal/library"
)

// Repository handles book metadata rows.
type Repository struct {
	db *gorm.DB
}

var _ library.Repository = (*Repository)(nil)

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a book. A second row for the same document is refused.
func (r *Repository) Create(ctx context.Context, book *entities.Book) error {
	err := r.db.WithContext(ctx).Create(book).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: document %s", library.ErrBookExists, book.DocumentID)
	}
	return err
}

func (r *Repository) GetByID(ctx context.Context, id string) (*entities.Book, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByDocumentID finds a book by the reader's partial MD5.
func (r *Repository) GetByDocumentID(ctx context.Context, documentID string) (*entities.Book, error) {
	return r.first(ctx, "document_id = ?", documentID)
}

func (r *Repository) first(ctx context.Context, query string, arg any) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Where(query, arg).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, library.ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// List returns one page of books and the total number of books.
func (r *Repository) List(ctx context.Context, opts library.ListOptions) ([]entities.Book, int64, error) {
	opts = opts.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&entities.Book{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var books []entities.Book
	err := r.db.WithContext(ctx).
		Order(opts.OrderClause()).
		Order("id ASC").
		Limit(opts.PerPage).
		Offset(opts.Offset()).
		Find(&books).Error
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// Update writes the editable metadata columns of an existing book.
func (r *Repository) Update(ctx context.Context, book *entities.Book) error {
	result := r.db.WithContext(ctx).Model(book).
		Select("title", "author", "publisher", "isbn", "language", "updated_at").
		Updates(book)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return library.ErrBookNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.Book{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return library.ErrBookNotFound
	}
	return nil
}
