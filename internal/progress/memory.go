package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mrlokans/kompanion/internal/entities"
)

// MemoryRepository keeps progress for the lifetime of the process.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]entities.ProgressRecord
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]entities.ProgressRecord)}
}

func (m *MemoryRepository) Get(ctx context.Context, documentID, ownerID string) (*entities.ProgressRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[lockKey(documentID, ownerID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryRepository) Upsert(ctx context.Context, rec *entities.ProgressRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := lockKey(rec.DocumentID, rec.OwnerID)
	now := time.Now()

	existing, ok := m.records[key]
	if ok && existing.Timestamp > rec.Timestamp {
		return false, nil
	}
	if ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.records[key] = *rec
	return true, nil
}

func (m *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]entities.ProgressRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]entities.ProgressRecord, 0)
	for _, rec := range m.records {
		if rec.OwnerID == ownerID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp > records[j].Timestamp })
	return records, nil
}
