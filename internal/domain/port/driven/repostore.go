// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// Sentinel errors returned by RepoStore implementations.
var (
	// ErrRepoNotFound indicates the requested repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRepoAlreadyExists indicates a repository with the same name already exists.
	ErrRepoAlreadyExists = errors.New("repository already exists")
)

// RepoStore defines the driven port for repository persistence.
// Lookups return (nil, nil) when the repository does not exist.
type RepoStore interface {
	Add(ctx context.Context, repo model.Repository) (model.Repository, error)
	Remove(ctx context.Context, fullName string) error
	GetByFullName(ctx context.Context, fullName string) (*model.Repository, error)
	GetByID(ctx context.Context, id int64) (*model.Repository, error)
	ListAll(ctx context.Context) ([]model.Repository, error)
	ListByWebhookState(ctx context.Context, state model.WebhookState) ([]model.Repository, error)

	// SetWebhookID stores the hook id from initial registration without
	// touching the retry counter.
	SetWebhookID(ctx context.Context, id int64, hookID int64) error

	// ClearWebhookID forgets the stored hook id once the hook is gone upstream.
	ClearWebhookID(ctx context.Context, id int64) error

	// RecordWebhookAttempt stores the outcome of a reconciliation attempt and
	// increments the retry counter. hookID is the id to keep stored: the new
	// hook, the undeleted old hook, or nil.
	// Returns the new retry count. Only PENDING repositories are updated.
	RecordWebhookAttempt(ctx context.Context, id int64, hookID *int64) (int, error)

	// TransitionWebhookState moves a PENDING repository to the given state.
	// Returns false when the repository was not PENDING.
	TransitionWebhookState(ctx context.Context, id int64, to model.WebhookState) (bool, error)
}
