package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// ErrPullRequestNotFound is returned by read lookups that miss.
var ErrPullRequestNotFound = errors.New("pull request not found")

// BuildTrigger starts a CI build for a commit of a repository.
type BuildTrigger interface {
	Trigger(ctx context.Context, repo model.Repository, commitHash string, triggeredBy *int64) (model.Build, error)
}

// PRDetail is a pull request with the tasks it is linked to.
type PRDetail struct {
	PullRequest model.PullRequest
	Repository  model.Repository
	Tasks       []model.Task
}

// PullRequestService drives the pull request lifecycle from webhook events.
type PullRequestService struct {
	tx      driven.Transactor
	repos   driven.RepoStore
	prs     driven.PRStore
	builds  BuildTrigger
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewPullRequestService creates a new PullRequestService.
func NewPullRequestService(
	tx driven.Transactor,
	repos driven.RepoStore,
	prs driven.PRStore,
	builds BuildTrigger,
	logger *slog.Logger,
) *PullRequestService {
	return &PullRequestService{
		tx:      tx,
		repos:   repos,
		prs:     prs,
		builds:  builds,
		logger:  orDefault(logger),
		nowFunc: time.Now,
	}
}

// Handle dispatches a pull request event on its action.
func (s *PullRequestService) Handle(ctx context.Context, event model.PullRequestEvent) error {
	switch {
	case event.Action == model.PRActionOpened:
		return s.opened(ctx, event)
	case event.Action == model.PRActionClosed && event.Merged:
		return s.merged(ctx, event)
	case event.Action == model.PRActionClosed:
		return s.closed(ctx, event)
	default:
		s.logger.Debug("pull request action ignored", "repo", event.Repo, "number", event.Number, "action", event.Action)
		return nil
	}
}

func (s *PullRequestService) opened(ctx context.Context, event model.PullRequestEvent) error {
	return s.tx.InTx(ctx, func(st driven.Stores) error {
		repo, err := st.Repos.GetByFullName(ctx, event.Repo)
		if err != nil {
			return err
		}
		if repo == nil {
			s.logger.Info("pull request for unknown repository skipped", "repo", event.Repo, "number", event.Number)
			return nil
		}

		pr := model.PullRequest{
			ProviderID:   event.ProviderID,
			RepoID:       repo.ID,
			Number:       event.Number,
			Title:        event.Title,
			Description:  event.Description,
			Status:       model.PRStatusOpen,
			URL:          event.URL,
			SourceBranch: event.SourceBranch,
			OpenedAt:     event.CreatedAt,
		}

		author, err := st.Users.GetByUsername(ctx, event.AuthorLogin)
		if err != nil {
			return err
		}
		if author != nil {
			pr.CreatedBy = &author.ID
		}

		stored, err := st.PRs.Upsert(ctx, pr)
		if err != nil {
			return fmt.Errorf("store pull request %s#%d: %w", event.Repo, event.Number, err)
		}

		key := model.ExtractTaskKeyFromPR(event.Title, event.SourceBranch)
		if key == "" {
			s.logger.Info("pull request opened", "repo", event.Repo, "number", event.Number)
			return nil
		}

		task, err := st.Tasks.GetByKey(ctx, key)
		if err != nil {
			return err
		}
		if task == nil {
			s.logger.Info("pull request references unknown task", "repo", event.Repo, "number", event.Number, "task", key)
			return nil
		}

		if err := st.PRs.LinkTask(ctx, stored.ID, task.ID); err != nil {
			return err
		}

		s.logger.Info("pull request opened", "repo", event.Repo, "number", event.Number, "task", key)
		return nil
	})
}

func (s *PullRequestService) merged(ctx context.Context, event model.PullRequestEvent) error {
	var repo *model.Repository

	err := s.tx.InTx(ctx, func(st driven.Stores) error {
		pr, err := st.PRs.GetByProviderID(ctx, event.ProviderID)
		if err != nil {
			return err
		}
		if pr == nil {
			s.logger.Info("merge for unknown pull request skipped", "repo", event.Repo, "number", event.Number, "provider_id", event.ProviderID)
			return nil
		}
		if pr.Status == model.PRStatusMerged {
			s.logger.Info("redelivered merge skipped", "repo", event.Repo, "number", event.Number, "provider_id", event.ProviderID)
			return nil
		}

		if err := st.PRs.MarkMerged(ctx, pr.ID, event.MergeCommitSHA, s.nowFunc()); err != nil {
			return err
		}

		tasks, err := st.PRs.ListLinkedTasks(ctx, pr.ID)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			if _, err := cascadeTransition(ctx, s.logger, st.Tasks, task, model.TaskStatusQA, "pull request merged"); err != nil {
				return err
			}
		}

		repo, err = st.Repos.GetByID(ctx, pr.RepoID)
		return err
	})
	if err != nil {
		return fmt.Errorf("merge pull request %s#%d: %w", event.Repo, event.Number, err)
	}
	if repo == nil {
		return nil
	}

	s.logger.Info("pull request merged", "repo", event.Repo, "number", event.Number, "sha", event.MergeCommitSHA)

	if event.MergeCommitSHA == "" {
		s.logger.Warn("merged pull request has no merge commit, build not triggered", "repo", event.Repo, "number", event.Number)
		return nil
	}

	if _, err := s.builds.Trigger(ctx, *repo, event.MergeCommitSHA, nil); err != nil {
		s.logger.Error("build trigger failed", "repo", event.Repo, "sha", event.MergeCommitSHA, "error", err)
	}

	return nil
}

func (s *PullRequestService) closed(ctx context.Context, event model.PullRequestEvent) error {
	pr, err := s.prs.GetByProviderID(ctx, event.ProviderID)
	if err != nil {
		return err
	}
	if pr == nil || pr.Status != model.PRStatusOpen {
		return nil
	}

	if err := s.prs.MarkClosed(ctx, pr.ID); err != nil {
		return err
	}

	s.logger.Info("pull request closed", "repo", event.Repo, "number", event.Number)
	return nil
}

// Get returns a pull request by repository and number with its linked tasks.
func (s *PullRequestService) Get(ctx context.Context, repoFullName string, number int) (*PRDetail, error) {
	repo, err := s.repos.GetByFullName(ctx, repoFullName)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("%s: %w", repoFullName, driven.ErrRepoNotFound)
	}

	pr, err := s.prs.GetByNumber(ctx, repo.ID, number)
	if err != nil {
		return nil, err
	}
	if pr == nil {
		return nil, fmt.Errorf("%s#%d: %w", repoFullName, number, ErrPullRequestNotFound)
	}

	tasks, err := s.prs.ListLinkedTasks(ctx, pr.ID)
	if err != nil {
		return nil, err
	}

	return &PRDetail{PullRequest: *pr, Repository: *repo, Tasks: tasks}, nil
}
