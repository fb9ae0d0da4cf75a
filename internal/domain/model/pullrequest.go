package model

import "time"

// PullRequest represents a provider pull request ingested from webhooks.
type PullRequest struct {
	ID             int64
	ProviderID     int64 // Globally unique id assigned by the provider.
	RepoID         int64
	Number         int
	Title          string
	Description    string
	Status         PRStatus
	URL            string
	SourceBranch   string
	MergeCommitSHA string
	CreatedBy      *int64 // Nil when the PR author has no platform account.
	OpenedAt       time.Time
	MergedAt       *time.Time
	UpdatedAt      time.Time
}

// PRTaskLink joins a pull request to a task it references.
type PRTaskLink struct {
	PRID      int64
	TaskID    int64
	CreatedAt time.Time
}
