package catalog

import (
	"fmt"
	"time"
)

// ErrUnavailable indicates a transient failure (rate-limited, timeout,
// server error). Callers recover from it locally; it never aborts a batch.
type ErrUnavailable struct {
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("catalog unavailable: %v", e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the catalog has no data for the requested artist.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("catalog: artist %s not found", e.ID)
}
