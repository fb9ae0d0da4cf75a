package model

import "time"

// Credential services understood by tracklink.
const (
	CredentialServiceGitHub = "github"
)

// Credential holds a per-user secret for an external service. Value is
// plaintext at the domain boundary; the store encrypts it at rest.
type Credential struct {
	UserID    int64
	Service   string
	Value     string
	UpdatedAt time.Time
}
