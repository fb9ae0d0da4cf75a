package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// ErrInvalidBuildResult is returned when a callback reports a non-terminal status.
var ErrInvalidBuildResult = errors.New("build result must be SUCCESS or FAILED")

// BuildDetail is a build with the deployment it produced, if any.
type BuildDetail struct {
	Build      model.Build
	Deployment *model.Deployment
}

// BuildService triggers CI builds and applies their callbacks.
type BuildService struct {
	tx              driven.Transactor
	builds          driven.BuildStore
	creds           driven.CredentialStore
	runner          driven.CIRunner
	callbackBaseURL string
	staleAfter      time.Duration
	logger          *slog.Logger
	nowFunc         func() time.Time
}

// NewBuildService creates a new BuildService. callbackBaseURL is the public
// base the runner posts callbacks to; staleAfter of zero disables the sweep.
func NewBuildService(
	tx driven.Transactor,
	builds driven.BuildStore,
	creds driven.CredentialStore,
	runner driven.CIRunner,
	callbackBaseURL string,
	staleAfter time.Duration,
	logger *slog.Logger,
) *BuildService {
	return &BuildService{
		tx:              tx,
		builds:          builds,
		creds:           creds,
		runner:          runner,
		callbackBaseURL: strings.TrimRight(callbackBaseURL, "/"),
		staleAfter:      staleAfter,
		logger:          orDefault(logger),
		nowFunc:         time.Now,
	}
}

// Trigger records a RUNNING build and asks the runner to start it. The build
// row exists before the runner is called; a runner failure is logged and the
// build is left RUNNING, since the job may have started anyway.
func (s *BuildService) Trigger(ctx context.Context, repo model.Repository, commitHash string, triggeredBy *int64) (model.Build, error) {
	jobName := repo.CIJobName
	if jobName == "" {
		jobName = repo.Name()
	}

	build, err := s.builds.Create(ctx, model.Build{
		RepoID:      repo.ID,
		CommitHash:  commitHash,
		JobName:     jobName,
		Status:      model.BuildStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   s.nowFunc(),
	})
	if err != nil {
		return model.Build{}, fmt.Errorf("record build for %s@%s: %w", repo.FullName, commitHash, err)
	}

	params := driven.JobParameters{
		CommitHash:    commitHash,
		BuildID:       build.ID,
		CheckoutToken: s.checkoutToken(ctx, repo),
		CallbackURL:   s.callbackURL(build.ID),
	}

	if err := s.runner.TriggerJob(ctx, jobName, params); err != nil {
		s.logger.Error("ci trigger failed, build left running",
			"repo", repo.FullName, "build_id", build.ID, "job", jobName, "error", err)
		return build, nil
	}

	s.logger.Info("build triggered", "repo", repo.FullName, "build_id", build.ID, "job", jobName, "sha", commitHash)
	return build, nil
}

func (s *BuildService) checkoutToken(ctx context.Context, repo model.Repository) string {
	if repo.CreatedBy == nil {
		s.logger.Warn("repository has no creator, triggering without checkout token", "repo", repo.FullName)
		return ""
	}

	token, err := s.creds.Get(ctx, *repo.CreatedBy, model.CredentialServiceGitHub)
	if err != nil {
		s.logger.Warn("creator token unavailable, triggering without checkout token", "repo", repo.FullName, "error", err)
		return ""
	}
	return token
}

func (s *BuildService) callbackURL(buildID int64) string {
	if s.callbackBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/api/v1/ci/builds/%d/callback", s.callbackBaseURL, buildID)
}

// HandleCallback finishes a build with the runner's result. SUCCESS creates
// the build's single deployment; FAILED tries to block the task linked to the
// build's commit, logging rather than returning any failure of that cascade.
// A build that already finished yields driven.ErrBuildFinalized.
func (s *BuildService) HandleCallback(ctx context.Context, buildID int64, result model.BuildResult) (BuildDetail, error) {
	if !result.Status.IsTerminal() {
		return BuildDetail{}, fmt.Errorf("build %d status %q: %w", buildID, result.Status, ErrInvalidBuildResult)
	}

	var detail BuildDetail

	err := s.tx.InTx(ctx, func(st driven.Stores) error {
		build, err := st.Builds.Finish(ctx, buildID, result)
		if err != nil {
			return err
		}
		detail = BuildDetail{Build: build}

		switch build.Status {
		case model.BuildStatusSuccess:
			deployment, err := st.Builds.CreateDeployment(ctx, model.Deployment{
				BuildID:    build.ID,
				Status:     model.DeploymentStatusSuccess,
				DeployedBy: build.TriggeredBy,
			})
			if err != nil {
				return err
			}
			detail.Deployment = &deployment
		case model.BuildStatusFailed:
			s.blockLinkedTask(ctx, st, build)
		}

		return nil
	})
	if err != nil {
		return BuildDetail{}, fmt.Errorf("build %d callback: %w", buildID, err)
	}

	s.logger.Info("build finished", "build_id", buildID, "status", detail.Build.Status, "deployed", detail.Deployment != nil)
	return detail, nil
}

func (s *BuildService) blockLinkedTask(ctx context.Context, st driven.Stores, build model.Build) {
	log := s.logger.With("build_id", build.ID, "sha", build.CommitHash)

	commit, err := st.Commits.GetByHash(ctx, build.RepoID, build.CommitHash)
	if err != nil {
		log.Warn("build failure cascade: commit lookup failed", "error", err)
		return
	}
	if commit == nil || commit.TaskID == nil {
		log.Info("build failure cascade: no linked task")
		return
	}

	task, err := st.Tasks.GetByID(ctx, *commit.TaskID)
	if err != nil || task == nil {
		log.Warn("build failure cascade: task lookup failed", "task_id", *commit.TaskID, "error", err)
		return
	}

	if _, err := cascadeTransition(ctx, log, st.Tasks, *task, model.TaskStatusBlocked, "build failed"); err != nil {
		log.Warn("build failure cascade failed", "task", task.Key, "error", err)
	}
}

// Get returns a build with its deployment.
func (s *BuildService) Get(ctx context.Context, buildID int64) (*BuildDetail, error) {
	build, err := s.builds.Get(ctx, buildID)
	if err != nil {
		return nil, err
	}
	if build == nil {
		return nil, fmt.Errorf("build %d: %w", buildID, driven.ErrBuildNotFound)
	}

	deployment, err := s.builds.GetDeploymentByBuild(ctx, buildID)
	if err != nil {
		return nil, err
	}

	return &BuildDetail{Build: *build, Deployment: deployment}, nil
}

// SweepStale fails builds that have waited longer than the staleness
// threshold for a callback. No deployment or task cascade runs for them.
func (s *BuildService) SweepStale(ctx context.Context) (int, error) {
	if s.staleAfter <= 0 {
		return 0, nil
	}

	unfinished, err := s.builds.ListUnfinished(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.nowFunc().Add(-s.staleAfter)
	console := fmt.Sprintf("no callback received within %s", s.staleAfter)

	var swept int
	for _, b := range unfinished {
		if b.StartedAt.After(cutoff) {
			continue
		}

		_, err := s.builds.Finish(ctx, b.ID, model.BuildResult{
			Status:        model.BuildStatusFailed,
			ConsoleOutput: &console,
		})
		if errors.Is(err, driven.ErrBuildFinalized) {
			continue
		}
		if err != nil {
			return swept, fmt.Errorf("sweep build %d: %w", b.ID, err)
		}

		swept++
		s.logger.Warn("stale build failed", "build_id", b.ID, "job", b.JobName, "started_at", b.StartedAt)
	}

	return swept, nil
}

// StartSweeper runs SweepStale on interval until ctx is canceled.
func (s *BuildService) StartSweeper(ctx context.Context, interval time.Duration) {
	if s.staleAfter <= 0 || interval <= 0 {
		s.logger.Info("build sweeper disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("build sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepStale(ctx); err != nil {
				s.logger.Error("build sweep failed", "error", err)
			}
		}
	}
}
