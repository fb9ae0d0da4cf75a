package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port interface.
type RepoRepo struct {
	conn conn
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{conn: db.conn()}
}

const repoColumns = `id, full_name, default_branch, webhook_id, webhook_secret, webhook_state,
	webhook_retry_count, ci_job_name, tech_stack, created_by, created_at, updated_at`

type repoRow struct {
	ID                int64         `db:"id"`
	FullName          string        `db:"full_name"`
	DefaultBranch     string        `db:"default_branch"`
	WebhookID         sql.NullInt64 `db:"webhook_id"`
	WebhookSecret     string        `db:"webhook_secret"`
	WebhookState      string        `db:"webhook_state"`
	WebhookRetryCount int           `db:"webhook_retry_count"`
	CIJobName         string        `db:"ci_job_name"`
	TechStack         string        `db:"tech_stack"`
	CreatedBy         sql.NullInt64 `db:"created_by"`
	CreatedAt         time.Time     `db:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

func (r repoRow) toModel() model.Repository {
	return model.Repository{
		ID:                r.ID,
		FullName:          r.FullName,
		DefaultBranch:     r.DefaultBranch,
		WebhookID:         int64Ptr(r.WebhookID),
		WebhookSecret:     r.WebhookSecret,
		WebhookState:      model.WebhookState(r.WebhookState),
		WebhookRetryCount: r.WebhookRetryCount,
		CIJobName:         r.CIJobName,
		TechStack:         model.TechStack(r.TechStack),
		CreatedBy:         int64Ptr(r.CreatedBy),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// Add inserts a new repository and returns it with its assigned ID. Returns
// ErrRepoAlreadyExists if a repository with the same full_name exists.
func (r *RepoRepo) Add(ctx context.Context, repo model.Repository) (model.Repository, error) {
	const query = `
		INSERT INTO repositories (
			full_name, default_branch, webhook_id, webhook_secret, webhook_state,
			webhook_retry_count, ci_job_name, tech_stack, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now
	}
	repo.CreatedAt = repo.CreatedAt.UTC()
	repo.UpdatedAt = now
	if repo.WebhookState == "" {
		repo.WebhookState = model.WebhookStatePending
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}

	result, err := r.conn.writer.ExecContext(ctx, query,
		repo.FullName, repo.DefaultBranch, nullInt64(repo.WebhookID), repo.WebhookSecret,
		string(repo.WebhookState), repo.WebhookRetryCount, repo.CIJobName, string(repo.TechStack),
		nullInt64(repo.CreatedBy), repo.CreatedAt, repo.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Repository{}, fmt.Errorf("add repository %s: %w", repo.FullName, driven.ErrRepoAlreadyExists)
		}
		return model.Repository{}, fmt.Errorf("add repository %s: %w", repo.FullName, err)
	}

	repo.ID, err = result.LastInsertId()
	if err != nil {
		return model.Repository{}, fmt.Errorf("read repository id: %w", err)
	}

	return repo, nil
}

// Remove deletes a repository by full name. Due to foreign key cascade, its
// commits, pull requests and builds are deleted too.
func (r *RepoRepo) Remove(ctx context.Context, fullName string) error {
	const query = `DELETE FROM repositories WHERE full_name = ?`

	result, err := r.conn.writer.ExecContext(ctx, query, fullName)
	if err != nil {
		return fmt.Errorf("remove repository %s: %w", fullName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("remove repository %s: %w", fullName, driven.ErrRepoNotFound)
	}

	return nil
}

// GetByFullName retrieves a repository by its full name. Returns nil, nil if
// the repository does not exist.
func (r *RepoRepo) GetByFullName(ctx context.Context, fullName string) (*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE full_name = ?`

	repo, err := r.getOne(ctx, query, fullName)
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", fullName, err)
	}
	return repo, nil
}

// GetByID retrieves a repository by ID. Returns nil, nil if it does not exist.
func (r *RepoRepo) GetByID(ctx context.Context, id int64) (*model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE id = ?`

	repo, err := r.getOne(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get repository %d: %w", id, err)
	}
	return repo, nil
}

// ListAll returns all repositories ordered by full name.
func (r *RepoRepo) ListAll(ctx context.Context) ([]model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories ORDER BY full_name`
	return r.list(ctx, query)
}

// ListByWebhookState returns repositories in the given webhook state, oldest first.
func (r *RepoRepo) ListByWebhookState(ctx context.Context, state model.WebhookState) ([]model.Repository, error) {
	query := `SELECT ` + repoColumns + ` FROM repositories WHERE webhook_state = ? ORDER BY created_at, id`
	return r.list(ctx, query, string(state))
}

// SetWebhookID records the hook id returned by the initial registration.
func (r *RepoRepo) SetWebhookID(ctx context.Context, id int64, hookID int64) error {
	const query = `UPDATE repositories SET webhook_id = ?, updated_at = ? WHERE id = ?`

	result, err := r.conn.writer.ExecContext(ctx, query, hookID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set webhook id for repository %d: %w", id, err)
	}
	return requireRow(result, fmt.Errorf("set webhook id for repository %d: %w", id, driven.ErrRepoNotFound))
}

// ClearWebhookID sets the stored hook id to NULL.
func (r *RepoRepo) ClearWebhookID(ctx context.Context, id int64) error {
	const query = `UPDATE repositories SET webhook_id = NULL, updated_at = ? WHERE id = ?`

	result, err := r.conn.writer.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("clear webhook id for repository %d: %w", id, err)
	}
	return requireRow(result, fmt.Errorf("clear webhook id for repository %d: %w", id, driven.ErrRepoNotFound))
}

// RecordWebhookAttempt stores hookID as the repository's hook id and increments the retry counter of a PENDING repository.
func (r *RepoRepo) RecordWebhookAttempt(ctx context.Context, id int64, hookID *int64) (int, error) {
	const update = `
		UPDATE repositories
		SET webhook_id = ?, webhook_retry_count = webhook_retry_count + 1, updated_at = ?
		WHERE id = ? AND webhook_state = 'PENDING'
	`

	result, err := r.conn.writer.ExecContext(ctx, update, nullInt64(hookID), time.Now().UTC(), id)
	if err != nil {
		return 0, fmt.Errorf("record webhook attempt for repository %d: %w", id, err)
	}
	if err := requireRow(result, fmt.Errorf("record webhook attempt for repository %d: %w", id, driven.ErrRepoNotFound)); err != nil {
		return 0, err
	}

	var count int
	if err := sqlx.GetContext(ctx, r.conn.writer, &count,
		`SELECT webhook_retry_count FROM repositories WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("read retry count for repository %d: %w", id, err)
	}

	return count, nil
}

// TransitionWebhookState moves a PENDING repository to the given state.
func (r *RepoRepo) TransitionWebhookState(ctx context.Context, id int64, to model.WebhookState) (bool, error) {
	const query = `
		UPDATE repositories SET webhook_state = ?, updated_at = ?
		WHERE id = ? AND webhook_state = 'PENDING'
	`

	result, err := r.conn.writer.ExecContext(ctx, query, string(to), time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("set webhook state %s for repository %d: %w", to, id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows == 1, nil
}

func (r *RepoRepo) getOne(ctx context.Context, query string, args ...any) (*model.Repository, error) {
	var row repoRow
	err := sqlx.GetContext(ctx, r.conn.reader, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	repo := row.toModel()
	return &repo, nil
}

func (r *RepoRepo) list(ctx context.Context, query string, args ...any) ([]model.Repository, error) {
	var rows []repoRow
	if err := sqlx.SelectContext(ctx, r.conn.reader, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	repos := make([]model.Repository, 0, len(rows))
	for _, row := range rows {
		repos = append(repos, row.toModel())
	}

	return repos, nil
}
