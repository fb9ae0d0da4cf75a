package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

var (
	// ErrMissingCredential is returned when the creator has no provider token.
	ErrMissingCredential = errors.New("creator has no github token")

	// ErrUnsupportedTechStack is returned when no pipeline template exists
	// for the requested stack.
	ErrUnsupportedTechStack = errors.New("unsupported tech stack")
)

// RegisterRequest describes a repository to start tracking.
type RegisterRequest struct {
	FullName  string
	CIJobName string // Defaults to the full name with "/" replaced by "-".
	TechStack model.TechStack
	CreatorID int64
}

// RepositoryService registers and removes tracked repositories together with
// their provider webhook and CI job.
type RepositoryService struct {
	repos       driven.RepoStore
	commits     driven.CommitStore
	creds       driven.CredentialStore
	scm         driven.SourceControl
	runner      driven.CIRunner
	callbackURL string
	logger      *slog.Logger
}

// NewRepositoryService creates a new RepositoryService. callbackURL is the
// public URL of the inbound webhook endpoint.
func NewRepositoryService(
	repos driven.RepoStore,
	commits driven.CommitStore,
	creds driven.CredentialStore,
	scm driven.SourceControl,
	runner driven.CIRunner,
	callbackURL string,
	logger *slog.Logger,
) *RepositoryService {
	return &RepositoryService{
		repos:       repos,
		commits:     commits,
		creds:       creds,
		scm:         scm,
		runner:      runner,
		callbackURL: callbackURL,
		logger:      orDefault(logger),
	}
}

// Register stores the repository in PENDING, creates its CI job and attempts
// the initial webhook registration. Job and webhook failures are logged; the
// reconciliation loop retries the webhook.
func (s *RepositoryService) Register(ctx context.Context, req RegisterRequest) (model.Repository, error) {
	if !s.runner.Supports(req.TechStack) {
		return model.Repository{}, fmt.Errorf("%q: %w", req.TechStack, ErrUnsupportedTechStack)
	}

	token, err := s.creds.Get(ctx, req.CreatorID, model.CredentialServiceGitHub)
	if err != nil {
		return model.Repository{}, fmt.Errorf("load creator token: %w", err)
	}
	if token == "" {
		return model.Repository{}, fmt.Errorf("user %d: %w", req.CreatorID, ErrMissingCredential)
	}

	remote, err := s.scm.GetRepository(ctx, token, req.FullName)
	if err != nil {
		return model.Repository{}, err
	}

	secret, err := newWebhookSecret()
	if err != nil {
		return model.Repository{}, err
	}

	jobName := req.CIJobName
	if jobName == "" {
		jobName = strings.ReplaceAll(req.FullName, "/", "-")
	}

	creatorID := req.CreatorID
	repo, err := s.repos.Add(ctx, model.Repository{
		FullName:      req.FullName,
		DefaultBranch: remote.DefaultBranch,
		WebhookSecret: secret,
		WebhookState:  model.WebhookStatePending,
		CIJobName:     jobName,
		TechStack:     req.TechStack,
		CreatedBy:     &creatorID,
	})
	if err != nil {
		return model.Repository{}, err
	}

	err = s.runner.CreateJob(ctx, driven.JobSpec{
		Name:     jobName,
		Stack:    req.TechStack,
		CloneURL: remote.CloneURL,
		Branch:   remote.DefaultBranch,
	})
	if err != nil {
		s.logger.Error("ci job creation failed", "repo", req.FullName, "job", jobName, "error", err)
	}

	if s.callbackURL == "" {
		s.logger.Warn("webhook callback url not configured, leaving repository pending", "repo", req.FullName)
		return repo, nil
	}

	hookID, err := createWebhook(ctx, s.scm, token, repo, s.callbackURL)
	if err != nil {
		s.logger.Warn("initial webhook registration failed, reconciliation will retry", "repo", req.FullName, "error", err)
		return repo, nil
	}

	if err := s.repos.SetWebhookID(ctx, repo.ID, hookID); err != nil {
		return repo, err
	}
	repo.WebhookID = &hookID

	s.logger.Info("repository registered", "repo", req.FullName, "hook_id", hookID, "job", jobName)
	return repo, nil
}

// Unregister removes the webhook and CI job best-effort, then deletes the
// repository and everything recorded for it.
func (s *RepositoryService) Unregister(ctx context.Context, fullName string) error {
	repo, err := s.repos.GetByFullName(ctx, fullName)
	if err != nil {
		return err
	}
	if repo == nil {
		return fmt.Errorf("%s: %w", fullName, driven.ErrRepoNotFound)
	}

	if repo.WebhookID != nil && repo.CreatedBy != nil {
		token, err := s.creds.Get(ctx, *repo.CreatedBy, model.CredentialServiceGitHub)
		switch {
		case err != nil:
			s.logger.Warn("creator token unavailable, webhook left in place", "repo", fullName, "error", err)
		case token == "":
			s.logger.Warn("creator has no token, webhook left in place", "repo", fullName)
		default:
			err := s.scm.DeleteWebhook(ctx, token, fullName, *repo.WebhookID)
			if err != nil && !errors.Is(err, driven.ErrWebhookNotFound) {
				s.logger.Warn("webhook deletion failed", "repo", fullName, "hook_id", *repo.WebhookID, "error", err)
			}
		}
	}

	if repo.CIJobName != "" {
		if err := s.runner.DeleteJob(ctx, repo.CIJobName); err != nil {
			s.logger.Warn("ci job deletion failed", "repo", fullName, "job", repo.CIJobName, "error", err)
		}
	}

	if err := s.repos.Remove(ctx, fullName); err != nil {
		return err
	}

	s.logger.Info("repository unregistered", "repo", fullName)
	return nil
}

// List returns all tracked repositories.
func (s *RepositoryService) List(ctx context.Context) ([]model.Repository, error) {
	return s.repos.ListAll(ctx)
}

// Commits returns the ingested commits of a tracked repository, newest first.
func (s *RepositoryService) Commits(ctx context.Context, fullName string) ([]model.Commit, error) {
	repo, err := s.repos.GetByFullName(ctx, fullName)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("%s: %w", fullName, driven.ErrRepoNotFound)
	}
	return s.commits.ListByRepo(ctx, repo.ID)
}
