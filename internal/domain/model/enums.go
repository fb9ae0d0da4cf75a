package model

// WebhookState tracks whether the provider-side webhook for a repository has
// been confirmed by a ping. It only moves forward: PENDING to ACTIVE or FAILED.
type WebhookState string

const (
	WebhookStatePending WebhookState = "PENDING"
	WebhookStateActive  WebhookState = "ACTIVE"
	WebhookStateFailed  WebhookState = "FAILED"
)

// PRStatus represents the state of a pull request.
type PRStatus string

const (
	PRStatusOpen   PRStatus = "OPEN"
	PRStatusClosed PRStatus = "CLOSED"
	PRStatusMerged PRStatus = "MERGED"
)

// BuildStatus represents the lifecycle state of a CI build.
type BuildStatus string

const (
	BuildStatusPending BuildStatus = "PENDING"
	BuildStatusRunning BuildStatus = "RUNNING"
	BuildStatusSuccess BuildStatus = "SUCCESS"
	BuildStatusFailed  BuildStatus = "FAILED"
)

// IsTerminal reports whether no further status change is allowed.
func (s BuildStatus) IsTerminal() bool {
	return s == BuildStatusSuccess || s == BuildStatusFailed
}

// DeploymentStatus represents the state of a deployment produced by a build.
type DeploymentStatus string

const (
	DeploymentStatusSuccess DeploymentStatus = "SUCCESS"
)

// TechStack selects the pipeline template used when creating a CI job.
type TechStack string

const (
	TechStackGo     TechStack = "go"
	TechStackNode   TechStack = "node"
	TechStackPython TechStack = "python"
	TechStackJava   TechStack = "java"
)
