package github

import (
	"encoding/json"
	"errors"
	"fmt"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WebhookCodec = (*WebhookCodec)(nil)

// Event kinds carried in the X-GitHub-Event header.
const (
	EventPing        = "ping"
	EventPush        = "push"
	EventPullRequest = "pull_request"
)

// WebhookCodec verifies and decodes GitHub webhook deliveries.
type WebhookCodec struct{}

// NewWebhookCodec creates a new WebhookCodec.
func NewWebhookCodec() *WebhookCodec {
	return &WebhookCodec{}
}

// repositoryEnvelope is the only part of a payload read before the signature
// has been checked.
type repositoryEnvelope struct {
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// RepositoryName returns repository.full_name from a raw payload.
func (c *WebhookCodec) RepositoryName(body []byte) (string, error) {
	var env repositoryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decoding webhook envelope: %w", err)
	}
	if env.Repository.FullName == "" {
		return "", errors.New("webhook payload has no repository.full_name")
	}
	return env.Repository.FullName, nil
}

// Verify checks an X-Hub-Signature-256 value ("sha256=<hex>") against body.
// An empty secret never verifies.
func (c *WebhookCodec) Verify(body []byte, signature, secret string) error {
	if secret == "" || signature == "" {
		return driven.ErrInvalidSignature
	}
	if err := gh.ValidateSignature(signature, body, []byte(secret)); err != nil {
		return fmt.Errorf("%w: %v", driven.ErrInvalidSignature, err)
	}
	return nil
}

// Decode maps a verified payload to a domain event.
func (c *WebhookCodec) Decode(eventType string, body []byte) (model.WebhookEvent, error) {
	switch eventType {
	case EventPing, EventPush, EventPullRequest:
	default:
		name, _ := c.RepositoryName(body)
		return model.IgnoredEvent{Repo: name, Kind: eventType}, nil
	}

	parsed, err := gh.ParseWebHook(eventType, body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s webhook: %w", eventType, err)
	}

	switch e := parsed.(type) {
	case *gh.PingEvent:
		name, err := c.RepositoryName(body)
		if err != nil {
			return nil, err
		}
		return model.PingEvent{Repo: name, HookID: e.GetHookID()}, nil
	case *gh.PushEvent:
		return mapPushEvent(e), nil
	case *gh.PullRequestEvent:
		return mapPullRequestEvent(e), nil
	default:
		return model.IgnoredEvent{Kind: eventType}, nil
	}
}

func mapPushEvent(e *gh.PushEvent) model.PushEvent {
	commits := make([]model.PushCommit, 0, len(e.Commits))
	for _, c := range e.Commits {
		commits = append(commits, model.PushCommit{
			Hash:        c.GetID(),
			Message:     c.GetMessage(),
			AuthorName:  c.GetAuthor().GetName(),
			AuthorEmail: c.GetAuthor().GetEmail(),
			Timestamp:   c.GetTimestamp().Time,
		})
	}

	return model.PushEvent{
		Repo:    e.GetRepo().GetFullName(),
		Ref:     e.GetRef(),
		Commits: commits,
	}
}

func mapPullRequestEvent(e *gh.PullRequestEvent) model.PullRequestEvent {
	pr := e.GetPullRequest()

	return model.PullRequestEvent{
		Repo:           e.GetRepo().GetFullName(),
		Action:         model.PRAction(e.GetAction()),
		ProviderID:     pr.GetID(),
		Number:         pr.GetNumber(),
		Title:          pr.GetTitle(),
		Description:    pr.GetBody(),
		URL:            pr.GetHTMLURL(),
		SourceBranch:   pr.GetHead().GetRef(),
		AuthorLogin:    pr.GetUser().GetLogin(),
		Merged:         pr.GetMerged(),
		MergeCommitSHA: pr.GetMergeCommitSHA(),
		CreatedAt:      pr.GetCreatedAt().Time,
	}
}
