package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// Errors reported to the webhook endpoint.
var (
	// ErrUnauthorized indicates a missing or mismatched payload signature.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedPayload indicates a verified body that could not be decoded.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// WebhookDelivery is one inbound provider delivery. Body must be the exact
// bytes received.
type WebhookDelivery struct {
	Event      string
	Signature  string
	DeliveryID string
	Body       []byte
}

// WebhookOutcome is the acknowledgement returned for an accepted delivery.
type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookIgnored   WebhookOutcome = "ignored"
)

// WebhookService authenticates deliveries against the repository's secret
// and dispatches them by event kind.
type WebhookService struct {
	repos  driven.RepoStore
	codec  driven.WebhookCodec
	ingest *IngestService
	prs    *PullRequestService
	logger *slog.Logger
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(
	repos driven.RepoStore,
	codec driven.WebhookCodec,
	ingest *IngestService,
	prs *PullRequestService,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		repos:  repos,
		codec:  codec,
		ingest: ingest,
		prs:    prs,
		logger: orDefault(logger),
	}
}

// Handle verifies and dispatches a delivery. Deliveries for repositories
// that are not tracked are acknowledged as ignored.
func (s *WebhookService) Handle(ctx context.Context, d WebhookDelivery) (WebhookOutcome, error) {
	log := s.logger.With("event", d.Event, "delivery", d.DeliveryID)

	name, err := s.codec.RepositoryName(d.Body)
	if err != nil {
		log.Info("webhook without repository ignored", "error", err)
		return WebhookIgnored, nil
	}
	log = log.With("repo", name)

	repo, err := s.repos.GetByFullName(ctx, name)
	if err != nil {
		return "", err
	}
	if repo == nil {
		log.Info("webhook for untracked repository ignored")
		return WebhookIgnored, nil
	}

	if err := s.codec.Verify(d.Body, d.Signature, repo.WebhookSecret); err != nil {
		log.Warn("webhook signature rejected", "error", err)
		return "", ErrUnauthorized
	}

	event, err := s.codec.Decode(d.Event, d.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch e := event.(type) {
	case model.PingEvent:
		return WebhookProcessed, s.ping(ctx, log, *repo, e)
	case model.PushEvent:
		result, err := s.ingest.IngestPush(ctx, e)
		if err != nil {
			return "", err
		}
		if result.Skipped {
			return WebhookIgnored, nil
		}
		return WebhookProcessed, nil
	case model.PullRequestEvent:
		if err := s.prs.Handle(ctx, e); err != nil {
			return "", err
		}
		return WebhookProcessed, nil
	case model.IgnoredEvent:
		log.Debug("webhook event kind not handled")
		return WebhookIgnored, nil
	default:
		log.Warn("unexpected decoded webhook type", "type", fmt.Sprintf("%T", event))
		return WebhookIgnored, nil
	}
}

// ping confirms a pending webhook. A ping for a hook other than the stored
// one is a leftover from an earlier attempt and leaves the state unchanged.
func (s *WebhookService) ping(ctx context.Context, log *slog.Logger, repo model.Repository, e model.PingEvent) error {
	if repo.WebhookState != model.WebhookStatePending {
		log.Debug("ping for settled webhook", "state", repo.WebhookState)
		return nil
	}
	if repo.WebhookID != nil && e.HookID != 0 && *repo.WebhookID != e.HookID {
		log.Info("ping for stale hook ignored", "hook_id", e.HookID, "stored_hook_id", *repo.WebhookID)
		return nil
	}

	ok, err := s.repos.TransitionWebhookState(ctx, repo.ID, model.WebhookStateActive)
	if err != nil {
		return err
	}
	if ok {
		log.Info("webhook confirmed", "hook_id", e.HookID)
	}
	return nil
}
