// Package devices provides database operations for registered reader devices.
//
// # Usage
//
//	repo := devices.NewRepository(db)
//	device, err := repo.GetByName(ctx, "kobo-libra")
package devices

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/kompanion/internal/auth"
	"github.com/mrlokans/kompanion/internal/entities"
)

// Repository implements auth.DeviceStore on top of gorm.
type Repository struct {
	db *gorm.DB
}

var _ auth.DeviceStore = (*Repository)(nil)

// NewRepository creates a new devices repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, device *entities.Device) error {
	err := r.db.WithContext(ctx).Create(device).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return auth.ErrDeviceExists
	}
	return err
}

func (r *Repository) GetByName(ctx context.Context, name string) (*entities.Device, error) {
	var device entities.Device
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *Repository) Delete(ctx context.Context, name string) error {
	result := r.db.WithContext(ctx).Where("name = ?", name).Delete(&entities.Device{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return auth.ErrDeviceNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, ownerID string) ([]entities.Device, error) {
	var devices []entities.Device
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name ASC").Find(&devices).Error
	return devices, err
}

// Touch records when a device last authenticated.
func (r *Repository) Touch(ctx context.Context, name string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.Device{}).
		Where("name = ?", name).
		UpdateColumn("last_seen_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return auth.ErrDeviceNotFound
	}
	return nil
}
