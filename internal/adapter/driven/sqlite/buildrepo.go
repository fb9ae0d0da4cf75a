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
var _ driven.BuildStore = (*BuildRepo)(nil)

// BuildRepo is the SQLite implementation of the BuildStore port interface.
type BuildRepo struct {
	conn conn
}

// NewBuildRepo creates a new BuildRepo backed by the given DB.
func NewBuildRepo(db *DB) *BuildRepo {
	return &BuildRepo{conn: db.conn()}
}

const buildColumns = `id, repo_id, commit_hash, job_name, build_number, status, console_output,
	triggered_by, started_at, finished_at`

type buildRow struct {
	ID            int64          `db:"id"`
	RepoID        int64          `db:"repo_id"`
	CommitHash    string         `db:"commit_hash"`
	JobName       string         `db:"job_name"`
	BuildNumber   sql.NullInt64  `db:"build_number"`
	Status        string         `db:"status"`
	ConsoleOutput sql.NullString `db:"console_output"`
	TriggeredBy   sql.NullInt64  `db:"triggered_by"`
	StartedAt     time.Time      `db:"started_at"`
	FinishedAt    sql.NullTime   `db:"finished_at"`
}

func (r buildRow) toModel() model.Build {
	return model.Build{
		ID:            r.ID,
		RepoID:        r.RepoID,
		CommitHash:    r.CommitHash,
		JobName:       r.JobName,
		BuildNumber:   intPtr(r.BuildNumber),
		Status:        model.BuildStatus(r.Status),
		ConsoleOutput: stringPtr(r.ConsoleOutput),
		TriggeredBy:   int64Ptr(r.TriggeredBy),
		StartedAt:     r.StartedAt,
		FinishedAt:    timePtr(r.FinishedAt),
	}
}

type deploymentRow struct {
	ID         int64         `db:"id"`
	BuildID    int64         `db:"build_id"`
	Status     string        `db:"status"`
	DeployedBy sql.NullInt64 `db:"deployed_by"`
	CreatedAt  time.Time     `db:"created_at"`
}

func (r deploymentRow) toModel() model.Deployment {
	return model.Deployment{
		ID:         r.ID,
		BuildID:    r.BuildID,
		Status:     model.DeploymentStatus(r.Status),
		DeployedBy: int64Ptr(r.DeployedBy),
		CreatedAt:  r.CreatedAt,
	}
}

// Create inserts a build and returns it with its assigned ID.
func (r *BuildRepo) Create(ctx context.Context, build model.Build) (model.Build, error) {
	const query = `
		INSERT INTO builds (
			repo_id, commit_hash, job_name, build_number, status, console_output,
			triggered_by, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if build.Status == "" {
		build.Status = model.BuildStatusRunning
	}
	if build.StartedAt.IsZero() {
		build.StartedAt = time.Now()
	}
	build.StartedAt = build.StartedAt.UTC()

	result, err := r.conn.writer.ExecContext(ctx, query,
		build.RepoID, build.CommitHash, build.JobName, nullInt(build.BuildNumber), string(build.Status),
		nullString(build.ConsoleOutput), nullInt64(build.TriggeredBy), build.StartedAt, nullTime(build.FinishedAt),
	)
	if err != nil {
		return model.Build{}, fmt.Errorf("create build for %s: %w", build.CommitHash, err)
	}

	build.ID, err = result.LastInsertId()
	if err != nil {
		return model.Build{}, fmt.Errorf("read build id: %w", err)
	}

	return build, nil
}

// Get retrieves a build by ID. Returns nil, nil if it does not exist.
func (r *BuildRepo) Get(ctx context.Context, id int64) (*model.Build, error) {
	build, err := r.getOne(ctx, r.conn.reader, id)
	if err != nil {
		return nil, fmt.Errorf("get build %d: %w", id, err)
	}
	return build, nil
}

// Finish moves an unfinished build to the reported terminal status. The
// status guard in the WHERE clause makes a second callback for the same
// build fail with ErrBuildFinalized instead of overwriting the first.
func (r *BuildRepo) Finish(ctx context.Context, id int64, result model.BuildResult) (model.Build, error) {
	const query = `
		UPDATE builds
		SET status = ?, build_number = COALESCE(?, build_number),
		    console_output = COALESCE(?, console_output), finished_at = ?
		WHERE id = ? AND status IN ('RUNNING', 'PENDING')
	`

	finishedAt := time.Now().UTC()
	if result.FinishedAt != nil {
		finishedAt = result.FinishedAt.UTC()
	}

	res, err := r.conn.writer.ExecContext(ctx, query,
		string(result.Status), nullInt(result.BuildNumber), nullString(result.ConsoleOutput), finishedAt, id,
	)
	if err != nil {
		return model.Build{}, fmt.Errorf("finish build %d: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return model.Build{}, fmt.Errorf("check rows affected: %w", err)
	}

	build, err := r.getOne(ctx, r.conn.writer, id)
	if err != nil {
		return model.Build{}, fmt.Errorf("reload build %d: %w", id, err)
	}
	if build == nil {
		return model.Build{}, fmt.Errorf("finish build %d: %w", id, driven.ErrBuildNotFound)
	}
	if rows == 0 {
		return *build, fmt.Errorf("finish build %d (status %s): %w", id, build.Status, driven.ErrBuildFinalized)
	}

	return *build, nil
}

// ListUnfinished returns builds still RUNNING or PENDING, oldest first.
func (r *BuildRepo) ListUnfinished(ctx context.Context) ([]model.Build, error) {
	query := `SELECT ` + buildColumns + ` FROM builds WHERE status IN ('RUNNING', 'PENDING') ORDER BY started_at, id`

	var rows []buildRow
	if err := sqlx.SelectContext(ctx, r.conn.reader, &rows, query); err != nil {
		return nil, fmt.Errorf("list unfinished builds: %w", err)
	}

	builds := make([]model.Build, 0, len(rows))
	for _, row := range rows {
		builds = append(builds, row.toModel())
	}

	return builds, nil
}

// CreateDeployment records the deployment produced by a build.
func (r *BuildRepo) CreateDeployment(ctx context.Context, deployment model.Deployment) (model.Deployment, error) {
	const query = `INSERT INTO deployments (build_id, status, deployed_by, created_at) VALUES (?, ?, ?, ?)`

	if deployment.Status == "" {
		deployment.Status = model.DeploymentStatusSuccess
	}
	if deployment.CreatedAt.IsZero() {
		deployment.CreatedAt = time.Now()
	}
	deployment.CreatedAt = deployment.CreatedAt.UTC()

	result, err := r.conn.writer.ExecContext(ctx, query,
		deployment.BuildID, string(deployment.Status), nullInt64(deployment.DeployedBy), deployment.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Deployment{}, fmt.Errorf("create deployment for build %d: %w", deployment.BuildID, driven.ErrDeploymentExists)
		}
		return model.Deployment{}, fmt.Errorf("create deployment for build %d: %w", deployment.BuildID, err)
	}

	deployment.ID, err = result.LastInsertId()
	if err != nil {
		return model.Deployment{}, fmt.Errorf("read deployment id: %w", err)
	}

	return deployment, nil
}

// GetDeploymentByBuild returns the deployment of a build, or nil, nil.
func (r *BuildRepo) GetDeploymentByBuild(ctx context.Context, buildID int64) (*model.Deployment, error) {
	const query = `SELECT id, build_id, status, deployed_by, created_at FROM deployments WHERE build_id = ?`

	var row deploymentRow
	err := sqlx.GetContext(ctx, r.conn.reader, &row, query, buildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment for build %d: %w", buildID, err)
	}

	d := row.toModel()
	return &d, nil
}

func (r *BuildRepo) getOne(ctx context.Context, q sqlx.QueryerContext, id int64) (*model.Build, error) {
	var row buildRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+buildColumns+` FROM builds WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b := row.toModel()
	return &b, nil
}
