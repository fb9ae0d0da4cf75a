package model

import (
	"strings"
	"time"
)

// Repository represents a source-control repository mirrored by tracklink.
type Repository struct {
	ID                int64
	FullName          string // owner/name
	DefaultBranch     string
	WebhookID         *int64 // Set once the provider accepted a hook.
	WebhookSecret     string
	WebhookState      WebhookState
	WebhookRetryCount int
	CIJobName         string
	TechStack         TechStack
	CreatedBy         *int64 // Creator's user ID; source of provider and CI credentials.
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Owner returns the part of FullName before the slash.
func (r Repository) Owner() string {
	owner, _, _ := strings.Cut(r.FullName, "/")
	return owner
}

// Name returns the part of FullName after the slash.
func (r Repository) Name() string {
	_, name, _ := strings.Cut(r.FullName, "/")
	return name
}

// PendingSince reports whether the repository has been waiting for webhook
// confirmation for at least grace.
func (r Repository) PendingSince(now time.Time, grace time.Duration) bool {
	return r.WebhookState == WebhookStatePending && !r.CreatedAt.After(now.Add(-grace))
}
