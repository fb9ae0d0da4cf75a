package driven

import (
	"context"
	"errors"
	"time"
)

// ErrLeaseHeld is returned when a guarded job is already running elsewhere.
var ErrLeaseHeld = errors.New("lease held by another runner")

// LeaseStore provides named, expiring locks shared by every process that
// opens the same database.
type LeaseStore interface {
	// Acquire takes the lease for holder unless another holder owns an
	// unexpired lease. Reports whether the lease was acquired.
	Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}
