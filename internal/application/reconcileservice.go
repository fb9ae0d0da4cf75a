package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// reconcileLease names the lease row guarding reconciliation runs.
const reconcileLease = "webhook-reconcile"

// ReconcileConfig holds the reconciliation loop settings.
type ReconcileConfig struct {
	Interval    time.Duration
	Grace       time.Duration
	MaxRetries  int
	CallbackURL string
	Concurrency int           // Parallel repositories per run; defaults to 4.
	LeaseTTL    time.Duration // Defaults to Interval.
}

// ReconcileReport summarizes one reconciliation run.
type ReconcileReport struct {
	Candidates int
	Recreated  int
	Failed     int
	Errors     int
}

// ReconcileService re-registers webhooks of repositories stuck in PENDING.
// It never marks a repository ACTIVE; only a received ping does that.
type ReconcileService struct {
	repos   driven.RepoStore
	creds   driven.CredentialStore
	scm     driven.SourceControl
	leases  driven.LeaseStore
	cfg     ReconcileConfig
	holder  string
	running sync.Mutex
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(
	repos driven.RepoStore,
	creds driven.CredentialStore,
	scm driven.SourceControl,
	leases driven.LeaseStore,
	cfg ReconcileConfig,
	logger *slog.Logger,
) *ReconcileService {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = cfg.Interval
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 5 * time.Minute
	}

	return &ReconcileService{
		repos:   repos,
		creds:   creds,
		scm:     scm,
		leases:  leases,
		cfg:     cfg,
		holder:  uuid.NewString(),
		logger:  orDefault(logger),
		nowFunc: time.Now,
	}
}

// Start runs reconciliation on the configured interval. It blocks until ctx
// is canceled.
func (s *ReconcileService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconcile service stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, driven.ErrLeaseHeld) {
				s.logger.Error("reconcile cycle failed", "error", err)
			}
		}
	}
}

// RunOnce performs one reconciliation pass. Overlapping runs, in this process
// or any other sharing the database, return driven.ErrLeaseHeld.
func (s *ReconcileService) RunOnce(ctx context.Context) (ReconcileReport, error) {
	if !s.running.TryLock() {
		return ReconcileReport{}, driven.ErrLeaseHeld
	}
	defer s.running.Unlock()

	ok, err := s.leases.Acquire(ctx, reconcileLease, s.holder, s.cfg.LeaseTTL)
	if err != nil {
		return ReconcileReport{}, err
	}
	if !ok {
		return ReconcileReport{}, driven.ErrLeaseHeld
	}
	defer func() {
		if err := s.leases.Release(context.WithoutCancel(ctx), reconcileLease, s.holder); err != nil {
			s.logger.Warn("lease release failed", "lease", reconcileLease, "error", err)
		}
	}()

	start := time.Now()

	pending, err := s.repos.ListByWebhookState(ctx, model.WebhookStatePending)
	if err != nil {
		return ReconcileReport{}, err
	}

	now := s.nowFunc()
	var (
		mu     sync.Mutex
		report ReconcileReport
	)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)

	for _, repo := range pending {
		if !repo.PendingSince(now, s.cfg.Grace) {
			continue
		}
		report.Candidates++

		g.Go(func() error {
			outcome, err := s.reconcileOne(ctx, repo)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Errors++
				s.logger.Error("reconcile repository failed", "repo", repo.FullName, "error", err)
			case outcome == outcomeRecreated:
				report.Recreated++
			case outcome == outcomeFailed:
				report.Failed++
			}
			return nil
		})
	}

	_ = g.Wait()

	s.logger.Info("reconcile cycle complete",
		"candidates", report.Candidates,
		"recreated", report.Recreated,
		"failed", report.Failed,
		"errors", report.Errors,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return report, nil
}

type reconcileOutcome int

const (
	outcomeNone reconcileOutcome = iota
	outcomeRecreated
	outcomeFailed
)

func (s *ReconcileService) reconcileOne(ctx context.Context, repo model.Repository) (reconcileOutcome, error) {
	log := s.logger.With("repo", repo.FullName, "retry_count", repo.WebhookRetryCount)

	if repo.WebhookRetryCount >= s.cfg.MaxRetries {
		return s.markFailed(ctx, log, repo, "retry budget exhausted")
	}

	if repo.WebhookSecret == "" {
		return s.markFailed(ctx, log, repo, "no webhook secret")
	}
	if s.cfg.CallbackURL == "" {
		return s.markFailed(ctx, log, repo, "no callback url configured")
	}
	if repo.CreatedBy == nil {
		return s.markFailed(ctx, log, repo, "no creator")
	}

	token, err := s.creds.Get(ctx, *repo.CreatedBy, model.CredentialServiceGitHub)
	if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		return s.markFailed(ctx, log, repo, "credential store not configured")
	}
	if err != nil {
		return outcomeNone, fmt.Errorf("load creator token: %w", err)
	}
	if token == "" {
		return s.markFailed(ctx, log, repo, "creator has no token")
	}

	// The old hook id is cleared before creating so a ping from the new hook
	// is not mistaken for a stale one. While the old hook cannot be deleted
	// its id is kept and no second hook is created.
	if repo.WebhookID != nil {
		err := s.scm.DeleteWebhook(ctx, token, repo.FullName, *repo.WebhookID)
		if err != nil && !errors.Is(err, driven.ErrWebhookNotFound) {
			return s.recordFailure(ctx, log, repo, repo.WebhookID, fmt.Errorf("delete stale webhook %d: %w", *repo.WebhookID, err))
		}
		if err := s.repos.ClearWebhookID(ctx, repo.ID); err != nil {
			return outcomeNone, err
		}
	}

	hookID, createErr := createWebhook(ctx, s.scm, token, repo, s.cfg.CallbackURL)
	if createErr != nil {
		return s.recordFailure(ctx, log, repo, nil, createErr)
	}

	count, err := s.repos.RecordWebhookAttempt(ctx, repo.ID, &hookID)
	if errors.Is(err, driven.ErrRepoNotFound) {
		// A ping from the new hook confirmed the repository first.
		if err := s.repos.SetWebhookID(ctx, repo.ID, hookID); err != nil {
			return outcomeNone, err
		}
		log.Info("webhook recreated and confirmed", "hook_id", hookID)
		return outcomeRecreated, nil
	}
	if err != nil {
		return outcomeNone, err
	}

	log.Info("webhook recreated", "hook_id", hookID, "attempts", count)
	return outcomeRecreated, nil
}

// recordFailure counts a failed attempt, keeping keepHookID stored, and marks
// the repository FAILED once the retry ceiling is reached.
func (s *ReconcileService) recordFailure(ctx context.Context, log *slog.Logger, repo model.Repository, keepHookID *int64, cause error) (reconcileOutcome, error) {
	count, err := s.repos.RecordWebhookAttempt(ctx, repo.ID, keepHookID)
	if err != nil {
		return outcomeNone, err
	}
	log.Warn("webhook recreate failed", "attempts", count, "error", cause)
	if count >= s.cfg.MaxRetries {
		return s.markFailed(ctx, log, repo, "retry budget exhausted")
	}
	return outcomeNone, nil
}

func (s *ReconcileService) markFailed(ctx context.Context, log *slog.Logger, repo model.Repository, reason string) (reconcileOutcome, error) {
	ok, err := s.repos.TransitionWebhookState(ctx, repo.ID, model.WebhookStateFailed)
	if err != nil {
		return outcomeNone, err
	}
	if !ok {
		return outcomeNone, nil
	}

	log.Warn("webhook registration failed permanently", "reason", reason)
	return outcomeFailed, nil
}
