package driven

import (
	"errors"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// ErrInvalidSignature is returned by WebhookCodec.Verify on any mismatch.
var ErrInvalidSignature = errors.New("invalid payload signature")

// WebhookCodec verifies and decodes raw provider webhook payloads.
type WebhookCodec interface {
	// RepositoryName extracts only the repository full name from the raw
	// body, so the secret can be looked up before full decoding.
	RepositoryName(body []byte) (string, error)
	// Verify checks signature against an HMAC-SHA256 of body keyed by secret.
	Verify(body []byte, signature, secret string) error
	// Decode maps the payload to a typed event. Unknown kinds decode to
	// model.IgnoredEvent.
	Decode(eventType string, body []byte) (model.WebhookEvent, error)
}
