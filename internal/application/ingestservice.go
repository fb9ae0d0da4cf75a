package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// PushResult summarizes one ingested push.
type PushResult struct {
	Skipped    bool // Repository unknown; nothing was written.
	Inserted   int
	Duplicates int
	Linked     int
}

// IngestService persists the commits of push events.
type IngestService struct {
	tx     driven.Transactor
	logger *slog.Logger
}

// NewIngestService creates a new IngestService.
func NewIngestService(tx driven.Transactor, logger *slog.Logger) *IngestService {
	return &IngestService{tx: tx, logger: orDefault(logger)}
}

// IngestPush stores every commit of a push in one transaction. Author and
// task are resolved best-effort per commit. Any persistence failure rolls
// the whole push back and is returned.
func (s *IngestService) IngestPush(ctx context.Context, event model.PushEvent) (PushResult, error) {
	var result PushResult

	err := s.tx.InTx(ctx, func(st driven.Stores) error {
		result = PushResult{}

		repo, err := st.Repos.GetByFullName(ctx, event.Repo)
		if err != nil {
			return err
		}
		if repo == nil {
			s.logger.Info("push for unknown repository skipped", "repo", event.Repo)
			result.Skipped = true
			return nil
		}

		for _, c := range event.Commits {
			commit := model.Commit{
				RepoID:      repo.ID,
				Hash:        c.Hash,
				Message:     c.Message,
				AuthorName:  c.AuthorName,
				AuthorEmail: c.AuthorEmail,
				CommittedAt: c.Timestamp,
			}

			author, err := st.Users.GetByEmail(ctx, c.AuthorEmail)
			if err != nil {
				return err
			}
			if author != nil {
				commit.AuthorID = &author.ID
			} else if c.AuthorEmail != "" {
				s.logger.Debug("commit author has no account", "repo", repo.FullName, "commit", c.Hash, "email", c.AuthorEmail)
			}

			if key := model.ExtractTaskKey(c.Message); key != "" {
				task, err := st.Tasks.GetByKey(ctx, key)
				if err != nil {
					return err
				}
				if task != nil {
					commit.TaskID = &task.ID
				} else {
					s.logger.Info("commit references unknown task", "repo", repo.FullName, "commit", c.Hash, "task", key)
				}
			}

			inserted, err := st.Commits.Insert(ctx, commit)
			if err != nil {
				return fmt.Errorf("ingest commit %s: %w", c.Hash, err)
			}
			switch {
			case inserted && commit.TaskID != nil:
				result.Inserted++
				result.Linked++
			case inserted:
				result.Inserted++
			default:
				result.Duplicates++
			}
		}

		return nil
	})
	if err != nil {
		return PushResult{}, fmt.Errorf("ingest push for %s: %w", event.Repo, err)
	}

	if !result.Skipped {
		s.logger.Info("push ingested",
			"repo", event.Repo,
			"ref", event.Ref,
			"inserted", result.Inserted,
			"duplicates", result.Duplicates,
			"linked", result.Linked,
		)
	}

	return result, nil
}
