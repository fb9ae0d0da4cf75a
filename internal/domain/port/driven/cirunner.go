package driven

import (
	"context"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// JobParameters are passed to every triggered CI job.
type JobParameters struct {
	CommitHash    string
	BuildID       int64
	CheckoutToken string // Creator's provider token for private-repo checkout.
	CallbackURL   string
}

// JobSpec describes a CI job to create for a repository.
type JobSpec struct {
	Name     string
	Stack    model.TechStack
	CloneURL string
	Branch   string
}

// CIRunner defines the driven port for the external job runner.
type CIRunner interface {
	TriggerJob(ctx context.Context, jobName string, params JobParameters) error
	CreateJob(ctx context.Context, spec JobSpec) error
	DeleteJob(ctx context.Context, jobName string) error

	// Supports reports whether a pipeline can be generated for stack.
	Supports(stack model.TechStack) bool
}
