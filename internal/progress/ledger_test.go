package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/kompanion/internal/entities"
)

func newTestLedger() *Ledger {
	return NewLedger(NewMemoryRepository())
}

func update(ts int64, pct float64, device string) Update {
	return Update{
		DocumentID: "0b229176d4e8db7f6d2b5a4952368d7a",
		OwnerID:    "admin",
		Percentage: pct,
		Progress:   fmt.Sprintf("/body/DocFragment[%d]", int(pct)),
		Device:     device,
		DeviceID:   device + "-id",
		Timestamp:  ts,
	}
}

func TestLedger_PutCreatesRecord(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	rec, err := ledger.Put(ctx, update(100, 12.5, "kobo"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.Timestamp)

	got, err := ledger.Get(ctx, rec.DocumentID, "admin")
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.Percentage)
	assert.Equal(t, "kobo", got.Device)
	assert.Equal(t, "/body/DocFragment[12]", got.Progress)
}

func TestLedger_EqualTimestampReplaces(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	_, err := ledger.Put(ctx, update(100, 10, "kobo"))
	require.NoError(t, err)
	_, err = ledger.Put(ctx, update(100, 20, "kindle"))
	require.NoError(t, err)

	got, err := ledger.Get(ctx, update(0, 0, "").DocumentID, "admin")
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.Percentage)
	assert.Equal(t, "kindle", got.Device)
}

func TestLedger_StaleUpdateIsRejected(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	_, err := ledger.Put(ctx, update(200, 50, "kobo"))
	require.NoError(t, err)

	_, err = ledger.Put(ctx, update(100, 80, "kindle"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(200), conflict.Current.Timestamp)
	assert.Equal(t, "kobo", conflict.Current.Device)

	got, err := ledger.Get(ctx, update(0, 0, "").DocumentID, "admin")
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Percentage)
	assert.Equal(t, int64(200), got.Timestamp)
}

func TestLedger_NewerUpdateFromOtherDeviceWins(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	_, err := ledger.Put(ctx, update(100, 30, "kobo"))
	require.NoError(t, err)
	_, err = ledger.Put(ctx, update(101, 35, "kindle"))
	require.NoError(t, err)

	got, err := ledger.Get(ctx, update(0, 0, "").DocumentID, "admin")
	require.NoError(t, err)
	assert.Equal(t, "kindle", got.Device)
	assert.Equal(t, "kindle-id", got.DeviceID)
	assert.Equal(t, 35.0, got.Percentage)
}

func TestLedger_ZeroTimestampUsesServerTime(t *testing.T) {
	ledger := newTestLedger()
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return fixed }

	rec, err := ledger.Put(context.Background(), update(0, 5, "kobo"))
	require.NoError(t, err)
	assert.Equal(t, fixed.Unix(), rec.Timestamp)
}

func TestLedger_Validation(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*Update)
		wantErr error
	}{
		{"empty document", func(u *Update) { u.DocumentID = "" }, ErrInvalidDocument},
		{"blank document", func(u *Update) { u.DocumentID = "   " }, ErrInvalidDocument},
		{"negative percentage", func(u *Update) { u.Percentage = -1 }, ErrInvalidPercentage},
		{"percentage above 100", func(u *Update) { u.Percentage = 100.5 }, ErrInvalidPercentage},
		{"NaN percentage", func(u *Update) { u.Percentage = math.NaN() }, ErrInvalidPercentage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := update(100, 10, "kobo")
			tt.mutate(&u)
			_, err := ledger.Put(ctx, u)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := ledger.Put(ctx, update(100, 100, "kobo"))
	assert.NoError(t, err)
}

func TestLedger_GetNotFound(t *testing.T) {
	ledger := newTestLedger()

	_, err := ledger.Get(context.Background(), "missing", "admin")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ledger.Get(context.Background(), "", "admin")
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestLedger_OwnersAreIsolated(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	u := update(100, 40, "kobo")
	_, err := ledger.Put(ctx, u)
	require.NoError(t, err)

	_, err = ledger.Get(ctx, u.DocumentID, "someone-else")
	assert.ErrorIs(t, err, ErrNotFound)

	other := u
	other.OwnerID = "someone-else"
	other.Timestamp = 1
	_, err = ledger.Put(ctx, other)
	assert.NoError(t, err)
}

func TestLedger_ConcurrentPutsKeepHighestTimestamp(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()
	const n = 64

	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Put(ctx, update(int64(i), float64(i), fmt.Sprintf("device-%d", i)))
			if err != nil && !errors.Is(err, ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := ledger.Get(ctx, update(0, 0, "").DocumentID, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.Timestamp)
	assert.Equal(t, float64(n), got.Percentage)
	assert.Equal(t, fmt.Sprintf("device-%d", n), got.Device)
	assert.Equal(t, fmt.Sprintf("/body/DocFragment[%d]", n), got.Progress)

	assert.Zero(t, ledger.locks.size())
}

func TestLedger_List(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	first := update(100, 10, "kobo")
	second := update(300, 20, "kobo")
	second.DocumentID = "another-document"

	_, err := ledger.Put(ctx, first)
	require.NoError(t, err)
	_, err = ledger.Put(ctx, second)
	require.NoError(t, err)

	records, err := ledger.List(ctx, "admin")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "another-document", records[0].DocumentID)
}

// racingRepository loses every conditional write, as if another process
// stored a newer record between the read and the write.
type racingRepository struct {
	*MemoryRepository
	winner *entities.ProgressRecord
}

func (r *racingRepository) Upsert(ctx context.Context, rec *entities.ProgressRecord) (bool, error) {
	if _, err := r.MemoryRepository.Upsert(ctx, r.winner); err != nil {
		return false, err
	}
	return r.MemoryRepository.Upsert(ctx, rec)
}

func TestLedger_LostConditionalWriteReportsConflict(t *testing.T) {
	winner := update(500, 90, "kindle")
	repo := &racingRepository{
		MemoryRepository: NewMemoryRepository(),
		winner: &entities.ProgressRecord{
			DocumentID: winner.DocumentID,
			OwnerID:    winner.OwnerID,
			Percentage: winner.Percentage,
			Device:     winner.Device,
			Timestamp:  winner.Timestamp,
		},
	}
	ledger := NewLedger(repo)

	_, err := ledger.Put(context.Background(), update(400, 60, "kobo"))

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int64(500), conflict.Current.Timestamp)
}

type failingRepository struct{ *MemoryRepository }

func (failingRepository) Get(context.Context, string, string) (*entities.ProgressRecord, error) {
	return nil, assert.AnError
}

func TestLedger_RepositoryFailureIsWrapped(t *testing.T) {
	ledger := NewLedger(failingRepository{NewMemoryRepository()})

	_, err := ledger.Put(context.Background(), update(1, 1, "kobo"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("k")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Zero(t, km.size())
}
