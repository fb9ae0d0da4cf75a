package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// PRStore defines the driven port for pull request persistence.
type PRStore interface {
	// Upsert inserts or refreshes a pull request keyed by provider id and
	// returns the stored row.
	Upsert(ctx context.Context, pr model.PullRequest) (model.PullRequest, error)
	GetByProviderID(ctx context.Context, providerID int64) (*model.PullRequest, error)
	GetByNumber(ctx context.Context, repoID int64, number int) (*model.PullRequest, error)
	MarkMerged(ctx context.Context, id int64, mergeCommitSHA string, mergedAt time.Time) error
	MarkClosed(ctx context.Context, id int64) error

	// LinkTask is idempotent.
	LinkTask(ctx context.Context, prID, taskID int64) error
	ListLinkedTasks(ctx context.Context, prID int64) ([]model.Task, error)
}
