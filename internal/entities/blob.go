package entities

import "time"

// Blob is a row of the relational blob backend. Writes replace Content
// wholesale; there is no partial update.
type Blob struct {
	Path      string   `gorm:"primaryKey;size:1024"`
	Content   []byte   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Blob) TableName() string {
	return "blobs"
}
