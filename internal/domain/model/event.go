package model

import "time"

// WebhookEvent is the closed set of provider events tracklink understands.
// Decoders return IgnoredEvent for anything else.
type WebhookEvent interface {
	RepositoryFullName() string
	webhookEvent()
}

// PingEvent is sent by the provider when a hook is created or re-pinged.
type PingEvent struct {
	Repo   string
	HookID int64
}

// PushEvent carries the commits of a push.
type PushEvent struct {
	Repo    string
	Ref     string
	Commits []PushCommit
}

// PushCommit is one commit entry of a push payload.
type PushCommit struct {
	Hash        string
	Message     string
	AuthorName  string
	AuthorEmail string
	Timestamp   time.Time
}

// PRAction is the pull request action reported by the provider.
type PRAction string

const (
	PRActionOpened PRAction = "opened"
	PRActionClosed PRAction = "closed"
)

// PullRequestEvent carries a pull request state change.
type PullRequestEvent struct {
	Repo           string
	Action         PRAction
	ProviderID     int64
	Number         int
	Title          string
	Description    string
	URL            string
	SourceBranch   string
	AuthorLogin    string
	Merged         bool
	MergeCommitSHA string
	CreatedAt      time.Time
}

// IgnoredEvent is any provider event kind without a handler.
type IgnoredEvent struct {
	Repo string
	Kind string
}

func (e PingEvent) RepositoryFullName() string        { return e.Repo }
func (e PushEvent) RepositoryFullName() string        { return e.Repo }
func (e PullRequestEvent) RepositoryFullName() string { return e.Repo }
func (e IgnoredEvent) RepositoryFullName() string     { return e.Repo }

func (PingEvent) webhookEvent()        {}
func (PushEvent) webhookEvent()        {}
func (PullRequestEvent) webhookEvent() {}
func (IgnoredEvent) webhookEvent()     {}
