package driven

import (
	"context"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// CommitStore defines the driven port for commit persistence. Commits are
// unique per (repository, hash); re-inserting a known commit is a no-op.
type CommitStore interface {
	// Insert stores the commit and reports whether a new row was created.
	Insert(ctx context.Context, commit model.Commit) (bool, error)
	// GetByHash returns (nil, nil) when the commit is unknown.
	GetByHash(ctx context.Context, repoID int64, hash string) (*model.Commit, error)
	ListByRepo(ctx context.Context, repoID int64) ([]model.Commit, error)
}
