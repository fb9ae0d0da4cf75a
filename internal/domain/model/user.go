package model

import "time"

// User is a platform account. Users are managed elsewhere; tracklink only
// resolves them by provider username or commit email.
type User struct {
	ID          int64
	Username    string // Provider login, e.g. "octocat".
	Email       string
	DisplayName string
	CreatedAt   time.Time
}
