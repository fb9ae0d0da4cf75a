package model

import "time"

// Commit is an immutable record of a pushed commit. Author name and email are
// denormalized because the provider author may not map to a platform user.
type Commit struct {
	ID          int64
	RepoID      int64
	Hash        string
	Message     string
	AuthorName  string
	AuthorEmail string
	AuthorID    *int64 // Platform user, when the email resolves.
	TaskID      *int64 // Task referenced by a key in the message.
	CommittedAt time.Time
	CreatedAt   time.Time
}
