// Package progress keeps the current reading position per document and owner.
//
// A record is replaced when an update's timestamp is at least the stored
// one. Older updates are refused with a *ConflictError carrying the record
// that was kept, so a reader can decide whether to pull it.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/mrlokans/kompanion/internal/entities"
)

// Repository persists progress records. Upsert must only replace an existing
// record whose timestamp is not newer than rec's, and report whether it wrote.
type Repository interface {
	Get(ctx context.Context, documentID, ownerID string) (*entities.ProgressRecord, error)
	Upsert(ctx context.Context, rec *entities.ProgressRecord) (applied bool, err error)
	ListByOwner(ctx context.Context, ownerID string) ([]entities.ProgressRecord, error)
}

// Update is a position reported by a reader.
type Update struct {
	DocumentID string
	OwnerID    string
	Percentage float64
	Progress   string
	Device     string
	DeviceID   string
	Timestamp  int64 // epoch seconds; zero means "now"
}

// Ledger serializes updates per (document, owner) and applies the
// latest-timestamp-wins rule.
type Ledger struct {
	repo  Repository
	locks *keyedMutex
	now   func() time.Time
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{
		repo:  repo,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// Put stores u unless the stored record is newer.
func (l *Ledger) Put(ctx context.Context, u Update) (*entities.ProgressRecord, error) {
	if err := validate(u); err != nil {
		return nil, err
	}
	if u.Timestamp <= 0 {
		u.Timestamp = l.now().Unix()
	}

	rec := &entities.ProgressRecord{
		DocumentID: u.DocumentID,
		OwnerID:    u.OwnerID,
		Percentage: u.Percentage,
		Progress:   u.Progress,
		Device:     u.Device,
		DeviceID:   u.DeviceID,
		Timestamp:  u.Timestamp,
	}

	unlock := l.locks.Lock(lockKey(u.DocumentID, u.OwnerID))
	defer unlock()

	existing, err := l.repo.Get(ctx, u.DocumentID, u.OwnerID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load progress for %s: %w", u.DocumentID, err)
	}
	if existing != nil && existing.Timestamp > rec.Timestamp {
		return nil, &ConflictError{Current: existing}
	}

	applied, err := l.repo.Upsert(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("store progress for %s: %w", u.DocumentID, err)
	}
	if !applied {
		// Another process sharing the database got there first.
		current, err := l.repo.Get(ctx, u.DocumentID, u.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("reload progress for %s: %w", u.DocumentID, err)
		}
		return nil, &ConflictError{Current: current}
	}

	log.Printf("Progress: %s at %.2f%% from %q (ts=%d)", u.DocumentID, u.Percentage, u.Device, u.Timestamp)
	return rec, nil
}

// Get returns the current record or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, documentID, ownerID string) (*entities.ProgressRecord, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, ErrInvalidDocument
	}
	return l.repo.Get(ctx, documentID, ownerID)
}

// List returns all records of an owner, newest first.
func (l *Ledger) List(ctx context.Context, ownerID string) ([]entities.ProgressRecord, error) {
	return l.repo.ListByOwner(ctx, ownerID)
}

func validate(u Update) error {
	if strings.TrimSpace(u.DocumentID) == "" {
		return ErrInvalidDocument
	}
	if math.IsNaN(u.Percentage) || u.Percentage < 0 || u.Percentage > 100 {
		return ErrInvalidPercentage
	}
	return nil
}

func lockKey(documentID, ownerID string) string {
	return ownerID + "\x00" + documentID
}
