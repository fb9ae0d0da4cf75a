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
var _ driven.CommitStore = (*CommitRepo)(nil)

// CommitRepo is the SQLite implementation of the CommitStore port interface.
type CommitRepo struct {
	conn conn
}

// NewCommitRepo creates a new CommitRepo backed by the given DB.
func NewCommitRepo(db *DB) *CommitRepo {
	return &CommitRepo{conn: db.conn()}
}

const commitColumns = `id, repo_id, hash, message, author_name, author_email, author_id, task_id, committed_at, created_at`

type commitRow struct {
	ID          int64         `db:"id"`
	RepoID      int64         `db:"repo_id"`
	Hash        string        `db:"hash"`
	Message     string        `db:"message"`
	AuthorName  string        `db:"author_name"`
	AuthorEmail string        `db:"author_email"`
	AuthorID    sql.NullInt64 `db:"author_id"`
	TaskID      sql.NullInt64 `db:"task_id"`
	CommittedAt time.Time     `db:"committed_at"`
	CreatedAt   time.Time     `db:"created_at"`
}

func (r commitRow) toModel() model.Commit {
	return model.Commit{
		ID:          r.ID,
		RepoID:      r.RepoID,
		Hash:        r.Hash,
		Message:     r.Message,
		AuthorName:  r.AuthorName,
		AuthorEmail: r.AuthorEmail,
		AuthorID:    int64Ptr(r.AuthorID),
		TaskID:      int64Ptr(r.TaskID),
		CommittedAt: r.CommittedAt,
		CreatedAt:   r.CreatedAt,
	}
}

// Insert stores a commit. A commit already known for the repository is left
// untouched and reported as not inserted.
func (r *CommitRepo) Insert(ctx context.Context, commit model.Commit) (bool, error) {
	const query = `
		INSERT INTO commits (
			repo_id, hash, message, author_name, author_email, author_id, task_id, committed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, hash) DO NOTHING
	`

	if commit.CommittedAt.IsZero() {
		commit.CommittedAt = time.Now()
	}

	result, err := r.conn.writer.ExecContext(ctx, query,
		commit.RepoID, commit.Hash, commit.Message, commit.AuthorName, commit.AuthorEmail,
		nullInt64(commit.AuthorID), nullInt64(commit.TaskID),
		commit.CommittedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert commit %s: %w", commit.Hash, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows == 1, nil
}

// GetByHash returns the commit with the given hash in a repository, or nil, nil.
func (r *CommitRepo) GetByHash(ctx context.Context, repoID int64, hash string) (*model.Commit, error) {
	query := `SELECT ` + commitColumns + ` FROM commits WHERE repo_id = ? AND hash = ?`

	var row commitRow
	err := sqlx.GetContext(ctx, r.conn.reader, &row, query, repoID, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get commit %s: %w", hash, err)
	}

	c := row.toModel()
	return &c, nil
}

// ListByRepo returns a repository's commits, newest first.
func (r *CommitRepo) ListByRepo(ctx context.Context, repoID int64) ([]model.Commit, error) {
	query := `SELECT ` + commitColumns + ` FROM commits WHERE repo_id = ? ORDER BY committed_at DESC, id DESC`

	var rows []commitRow
	if err := sqlx.SelectContext(ctx, r.conn.reader, &rows, query, repoID); err != nil {
		return nil, fmt.Errorf("list commits for repository %d: %w", repoID, err)
	}

	commits := make([]model.Commit, 0, len(rows))
	for _, row := range rows {
		commits = append(commits, row.toModel())
	}

	return commits, nil
}
