package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// TRACKLINK_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set TRACKLINK_SECRET_KEY")

// CredentialStore defines the driven port for encrypted per-user credentials.
// The adapter layer is responsible for encryption/decryption; this interface
// operates on plaintext values at the domain boundary.
type CredentialStore interface {
	// Set stores or replaces the credential for the given user and service.
	Set(ctx context.Context, userID int64, service, plaintext string) error

	// Get returns ("", nil) if no credential exists.
	Get(ctx context.Context, userID int64, service string) (string, error)

	Delete(ctx context.Context, userID int64, service string) error
}
