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
var _ driven.PRStore = (*PRRepo)(nil)

// PRRepo is the SQLite implementation of the PRStore port interface.
type PRRepo struct {
	conn conn
}

// NewPRRepo creates a new PRRepo backed by the given DB.
func NewPRRepo(db *DB) *PRRepo {
	return &PRRepo{conn: db.conn()}
}

const prColumns = `id, provider_id, repo_id, number, title, description, status, url, source_branch,
	merge_commit_sha, created_by, opened_at, merged_at, updated_at`

type prRow struct {
	ID             int64         `db:"id"`
	ProviderID     int64         `db:"provider_id"`
	RepoID         int64         `db:"repo_id"`
	Number         int           `db:"number"`
	Title          string        `db:"title"`
	Description    string        `db:"description"`
	Status         string        `db:"status"`
	URL            string        `db:"url"`
	SourceBranch   string        `db:"source_branch"`
	MergeCommitSHA string        `db:"merge_commit_sha"`
	CreatedBy      sql.NullInt64 `db:"created_by"`
	OpenedAt       time.Time     `db:"opened_at"`
	MergedAt       sql.NullTime  `db:"merged_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

func (r prRow) toModel() model.PullRequest {
	return model.PullRequest{
		ID:             r.ID,
		ProviderID:     r.ProviderID,
		RepoID:         r.RepoID,
		Number:         r.Number,
		Title:          r.Title,
		Description:    r.Description,
		Status:         model.PRStatus(r.Status),
		URL:            r.URL,
		SourceBranch:   r.SourceBranch,
		MergeCommitSHA: r.MergeCommitSHA,
		CreatedBy:      int64Ptr(r.CreatedBy),
		OpenedAt:       r.OpenedAt,
		MergedAt:       timePtr(r.MergedAt),
		UpdatedAt:      r.UpdatedAt,
	}
}

// Upsert inserts a pull request or refreshes its descriptive fields when the
// provider id is already known. Status and merge data of an existing row are
// left alone; MarkMerged and MarkClosed own those.
func (r *PRRepo) Upsert(ctx context.Context, pr model.PullRequest) (model.PullRequest, error) {
	const query = `
		INSERT INTO pull_requests (
			provider_id, repo_id, number, title, description, status, url, source_branch,
			merge_commit_sha, created_by, opened_at, merged_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			url = excluded.url,
			source_branch = excluded.source_branch,
			created_by = COALESCE(pull_requests.created_by, excluded.created_by),
			updated_at = excluded.updated_at
	`

	if pr.Status == "" {
		pr.Status = model.PRStatusOpen
	}
	if pr.OpenedAt.IsZero() {
		pr.OpenedAt = time.Now()
	}

	_, err := r.conn.writer.ExecContext(ctx, query,
		pr.ProviderID, pr.RepoID, pr.Number, pr.Title, pr.Description, string(pr.Status),
		pr.URL, pr.SourceBranch, pr.MergeCommitSHA, nullInt64(pr.CreatedBy),
		pr.OpenedAt.UTC(), nullTime(pr.MergedAt), time.Now().UTC(),
	)
	if err != nil {
		return model.PullRequest{}, fmt.Errorf("upsert pull request %d: %w", pr.ProviderID, err)
	}

	stored, err := r.getOne(ctx, r.conn.writer, `SELECT `+prColumns+` FROM pull_requests WHERE provider_id = ?`, pr.ProviderID)
	if err != nil {
		return model.PullRequest{}, fmt.Errorf("reload pull request %d: %w", pr.ProviderID, err)
	}
	if stored == nil {
		return model.PullRequest{}, fmt.Errorf("reload pull request %d: row vanished", pr.ProviderID)
	}

	return *stored, nil
}

// GetByProviderID retrieves a pull request by provider id. Returns nil, nil if
// it does not exist.
func (r *PRRepo) GetByProviderID(ctx context.Context, providerID int64) (*model.PullRequest, error) {
	pr, err := r.getOne(ctx, r.conn.reader, `SELECT `+prColumns+` FROM pull_requests WHERE provider_id = ?`, providerID)
	if err != nil {
		return nil, fmt.Errorf("get PR %d: %w", providerID, err)
	}
	return pr, nil
}

// GetByNumber retrieves a single pull request by repository and number.
// Returns nil, nil if the pull request does not exist.
func (r *PRRepo) GetByNumber(ctx context.Context, repoID int64, number int) (*model.PullRequest, error) {
	query := `SELECT ` + prColumns + ` FROM pull_requests WHERE repo_id = ? AND number = ? ORDER BY id DESC LIMIT 1`

	pr, err := r.getOne(ctx, r.conn.reader, query, repoID, number)
	if err != nil {
		return nil, fmt.Errorf("get PR %d#%d: %w", repoID, number, err)
	}
	return pr, nil
}

// MarkMerged records the merge of a pull request.
func (r *PRRepo) MarkMerged(ctx context.Context, id int64, mergeCommitSHA string, mergedAt time.Time) error {
	const query = `
		UPDATE pull_requests
		SET status = 'MERGED', merge_commit_sha = ?, merged_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.conn.writer.ExecContext(ctx, query, mergeCommitSHA, mergedAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark PR %d merged: %w", id, err)
	}
	return requireRow(result, fmt.Errorf("mark PR %d merged: %w", id, sql.ErrNoRows))
}

// MarkClosed records that a pull request was closed without merging.
func (r *PRRepo) MarkClosed(ctx context.Context, id int64) error {
	const query = `UPDATE pull_requests SET status = 'CLOSED', updated_at = ? WHERE id = ?`

	result, err := r.conn.writer.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark PR %d closed: %w", id, err)
	}
	return requireRow(result, fmt.Errorf("mark PR %d closed: %w", id, sql.ErrNoRows))
}

// LinkTask associates a pull request with a task. Linking twice is a no-op.
func (r *PRRepo) LinkTask(ctx context.Context, prID, taskID int64) error {
	const query = `INSERT OR IGNORE INTO pr_task_links (pr_id, task_id, created_at) VALUES (?, ?, ?)`

	if _, err := r.conn.writer.ExecContext(ctx, query, prID, taskID, time.Now().UTC()); err != nil {
		return fmt.Errorf("link PR %d to task %d: %w", prID, taskID, err)
	}
	return nil
}

// ListLinkedTasks returns the tasks linked to a pull request, ordered by key.
func (r *PRRepo) ListLinkedTasks(ctx context.Context, prID int64) ([]model.Task, error) {
	const query = `
		SELECT t.id, t.task_key, t.title, t.status, t.updated_at
		FROM tasks t
		JOIN pr_task_links l ON l.task_id = t.id
		WHERE l.pr_id = ?
		ORDER BY t.task_key
	`

	var rows []taskRow
	if err := sqlx.SelectContext(ctx, r.conn.reader, &rows, query, prID); err != nil {
		return nil, fmt.Errorf("list tasks linked to PR %d: %w", prID, err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toModel())
	}

	return tasks, nil
}

func (r *PRRepo) getOne(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*model.PullRequest, error) {
	var row prRow
	err := sqlx.GetContext(ctx, q, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	pr := row.toModel()
	return &pr, nil
}
