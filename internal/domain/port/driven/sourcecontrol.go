package driven

import (
	"context"
	"errors"
)

// ErrWebhookNotFound is returned when the provider no longer knows the hook.
var ErrWebhookNotFound = errors.New("webhook not found")

// RemoteRepository is the provider's view of a repository.
type RemoteRepository struct {
	FullName      string
	DefaultBranch string
	CloneURL      string
	Private       bool
}

// WebhookRequest describes a hook to create on the provider.
type WebhookRequest struct {
	RepoFullName string
	CallbackURL  string
	Secret       string
	Events       []string
}

// SourceControl defines the driven port for the calls tracklink makes to the
// source-control provider. Every call authenticates with the given token.
type SourceControl interface {
	GetRepository(ctx context.Context, token, repoFullName string) (*RemoteRepository, error)
	// CreateWebhook returns the provider-assigned hook id.
	CreateWebhook(ctx context.Context, token string, req WebhookRequest) (int64, error)
	// DeleteWebhook returns ErrWebhookNotFound when the provider answers 404.
	DeleteWebhook(ctx context.Context, token, repoFullName string, hookID int64) error
}
