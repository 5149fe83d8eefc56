package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/kompanion/internal/entities"
)

// Database stores blobs as rows of the blobs table. Each write is a single
// upsert inside its own transaction.
type Database struct {
	db *gorm.DB
}

// NewDatabase expects the blobs table to be migrated already
// (database.NewDatabase does that).
func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) Write(ctx context.Context, src io.Reader, dst string) error {
	key, err := normalizePath(dst)
	if err != nil {
		return err
	}
	content, err := io.ReadAll(&contextReader{ctx: ctx, r: src})
	if err != nil {
		return writeError(dst, err)
	}
	if content == nil {
		content = []byte{}
	}

	now := time.Now()
	blob := entities.Blob{
		Path:      key,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
		}).Create(&blob).Error
	})
	if err != nil {
		return writeError(dst, err)
	}
	return nil
}

func (d *Database) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	key, err := normalizePath(path)
	if err != nil {
		return nil, err
	}
	var blob entities.Blob
	err = d.db.WithContext(ctx).Where("path = ?", key).First(&blob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}
	// The scanned slice belongs to this call alone.
	return io.NopCloser(bytes.NewReader(blob.Content)), nil
}

func (d *Database) Delete(ctx context.Context, path string) error {
	key, err := normalizePath(path)
	if err != nil {
		return err
	}
	result := d.db.WithContext(ctx).Where("path = ?", key).Delete(&entities.Blob{})
	if result.Error != nil {
		return fmt.Errorf("delete blob %s: %w", path, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
