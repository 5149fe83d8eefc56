// Package progress provides database operations for reading progress records.
//
// # Usage
//
//	repo := progress.NewRepository(db)
//	ledger := ledger.NewLedger(repo)
package progress

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/kompanion/internal/entities"
	ledger "github.com/mrlokans/kompanion/internal/progress"
)

// Repository implements the ledger's Repository with a conditional upsert,
// so the timestamp rule also holds between processes sharing one database.
type Repository struct {
	db *gorm.DB
}

var _ ledger.Repository = (*Repository)(nil)

// NewRepository creates a new progress repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, documentID, ownerID string) (*entities.ProgressRecord, error) {
	var rec entities.ProgressRecord
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND owner_id = ?", documentID, ownerID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert inserts rec, or overwrites the stored row when its timestamp is not
// newer. applied is false when the stored row won.
func (r *Repository) Upsert(ctx context.Context, rec *entities.ProgressRecord) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "document_id"}, {Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"percentage", "progress", "device", "device_id", "client_timestamp", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "progress_records.client_timestamp <= excluded.client_timestamp"},
		}},
	}).Create(rec)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByOwner returns every record of an owner, most recently updated first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]entities.ProgressRecord, error) {
	var records []entities.ProgressRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("client_timestamp DESC").
		Find(&records).Error
	return records, err
}
