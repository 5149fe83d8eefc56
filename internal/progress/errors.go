package progress

import (
	"errors"
	"fmt"

	"github.com/mrlokans/kompanion/internal/entities"
)

var (
	ErrNotFound          = errors.New("progress not found")
	ErrConflict          = errors.New("progress update is older than the stored record")
	ErrInvalidDocument   = errors.New("document is required")
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
)

// ConflictError is returned when an update carries a timestamp older than
// the stored record. Current is the record that was kept.
type ConflictError struct {
	Current *entities.ProgressRecord
}

func (e *ConflictError) Error() string {
	if e.Current == nil {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s: stored timestamp %d", ErrConflict, e.Current.Timestamp)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
