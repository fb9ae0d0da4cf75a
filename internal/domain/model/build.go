package model

import "time"

// Build is one CI run for a commit. It is created when the job is triggered
// and moved to a terminal status exactly once by the callback handler.
type Build struct {
	ID            int64
	RepoID        int64
	CommitHash    string
	JobName       string
	BuildNumber   *int // Assigned by the runner; nil until reported.
	Status        BuildStatus
	ConsoleOutput *string
	TriggeredBy   *int64 // Nil for system-triggered builds.
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// BuildResult is what the runner reports back for a build.
type BuildResult struct {
	Status        BuildStatus
	BuildNumber   *int
	FinishedAt    *time.Time
	ConsoleOutput *string
}

// Deployment is created as a side effect of a successful build. A build
// produces at most one deployment.
type Deployment struct {
	ID         int64
	BuildID    int64
	Status     DeploymentStatus
	DeployedBy *int64
	CreatedAt  time.Time
}
