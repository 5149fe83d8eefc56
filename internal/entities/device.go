package entities

import "time"

// Device is a reader registered to sync under an owner's account.
// SecretHash holds the hex MD5 digest of the device password; the
// plaintext is never stored.
type Device struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"uniqueIndex;size:64;not null" json:"name"`
	SecretHash string     `gorm:"size:32;not null" json:"-"`
	OwnerID    string     `gorm:"index;size:100;not null" json:"owner_id"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Device) TableName() string {
	return "devices"
}
