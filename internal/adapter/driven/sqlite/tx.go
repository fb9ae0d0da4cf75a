package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Transactor = (*Transactor)(nil)

// Transactor runs units of work on the writer connection inside one
// transaction, handing the callback stores bound to that transaction.
type Transactor struct {
	db *DB
}

// NewTransactor creates a new Transactor backed by the given DB.
func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

// InTx begins a transaction, runs fn and commits. Any error from fn, or a
// panic, rolls the whole transaction back.
func (t *Transactor) InTx(ctx context.Context, fn func(driven.Stores) error) error {
	tx, err := t.db.Writer.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	c := txConn(tx)
	stores := driven.Stores{
		Repos:   &RepoRepo{conn: c},
		Commits: &CommitRepo{conn: c},
		PRs:     &PRRepo{conn: c},
		Tasks:   &TaskRepo{conn: c},
		Users:   &UserRepo{conn: c},
		Builds:  &BuildRepo{conn: c},
	}

	if err := fn(stores); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
