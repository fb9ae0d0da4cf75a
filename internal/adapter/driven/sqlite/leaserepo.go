package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LeaseStore = (*LeaseRepo)(nil)

// LeaseRepo is the SQLite implementation of the LeaseStore port interface.
// Expiry is stored as unix seconds so the comparison happens on integers.
type LeaseRepo struct {
	conn conn
	now  func() time.Time
}

// NewLeaseRepo creates a new LeaseRepo backed by the given DB.
func NewLeaseRepo(db *DB) *LeaseRepo {
	return &LeaseRepo{conn: db.conn(), now: time.Now}
}

// Acquire takes the named lease for holder. An existing lease is taken over
// only when it has expired or already belongs to holder.
func (r *LeaseRepo) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	const query = `
		INSERT INTO job_leases (name, holder, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE job_leases.expires_at < ? OR job_leases.holder = excluded.holder
	`

	now := r.now()
	result, err := r.conn.writer.ExecContext(ctx, query, name, holder, now.Add(ttl).Unix(), now.Unix())
	if err != nil {
		return false, fmt.Errorf("acquire lease %q: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows == 1, nil
}

// Release drops the lease if holder still owns it.
func (r *LeaseRepo) Release(ctx context.Context, name, holder string) error {
	const query = `DELETE FROM job_leases WHERE name = ? AND holder = ?`

	if _, err := r.conn.writer.ExecContext(ctx, query, name, holder); err != nil {
		return fmt.Errorf("release lease %q: %w", name, err)
	}
	return nil
}
