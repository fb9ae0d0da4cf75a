package application

import (
	"context"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReport is the service health view served by the API.
type HealthReport struct {
	Status   string
	Database string
	Webhooks map[model.WebhookState]int
}

// Healthy reports whether every dependency answered.
func (r HealthReport) Healthy() bool {
	return r.Status == "ok"
}

// HealthService checks database reachability and summarizes webhook
// registration state across tracked repositories.
type HealthService struct {
	db    Pinger
	repos driven.RepoStore
}

// NewHealthService creates a new HealthService with the required dependencies.
func NewHealthService(db Pinger, repos driven.RepoStore) *HealthService {
	return &HealthService{db: db, repos: repos}
}

// Check assembles the health report. A failed ping degrades the status but
// is not returned as an error.
func (s *HealthService) Check(ctx context.Context) HealthReport {
	report := HealthReport{Status: "ok", Database: "ok"}

	if err := s.db.Ping(ctx); err != nil {
		report.Status = "degraded"
		report.Database = err.Error()
		return report
	}

	repos, err := s.repos.ListAll(ctx)
	if err != nil {
		report.Status = "degraded"
		report.Database = err.Error()
		return report
	}

	report.Webhooks = summarizeWebhookStates(repos)
	return report
}

// summarizeWebhookStates counts repositories per webhook state. Every state
// is present in the result, zero or not.
func summarizeWebhookStates(repos []model.Repository) map[model.WebhookState]int {
	counts := map[model.WebhookState]int{
		model.WebhookStatePending: 0,
		model.WebhookStateActive:  0,
		model.WebhookStateFailed:  0,
	}
	for _, r := range repos {
		counts[r.WebhookState]++
	}
	return counts
}
