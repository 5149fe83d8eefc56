package entities

import "time"

// ProgressRecord is the latest accepted reading position for a document
// under one owner. Timestamp is the client-supplied epoch (seconds) used
// for ordering; CreatedAt/UpdatedAt are server bookkeeping only.
type ProgressRecord struct {
	DocumentID string    `gorm:"primaryKey;size:255" json:"document"`
	OwnerID    string    `gorm:"primaryKey;size:100" json:"-"`
	Percentage float64   `gorm:"not null" json:"percentage"`
	Progress   string    `gorm:"type:text" json:"progress"`
	Device     string    `gorm:"size:255" json:"device"`
	DeviceID   string    `gorm:"size:255" json:"device_id"`
	Timestamp  int64     `gorm:"column:client_timestamp;not null" json:"timestamp"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

func (ProgressRecord) TableName() string {
	return "progress_records"
}
