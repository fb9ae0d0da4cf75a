package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// webhookEvents are the provider events every repository hook subscribes to.
var webhookEvents = []string{"push", "pull_request"}

// createWebhook registers the repository's hook on the provider. It is shared
// by initial registration and the reconciliation loop.
func createWebhook(ctx context.Context, scm driven.SourceControl, token string, repo model.Repository, callbackURL string) (int64, error) {
	hookID, err := scm.CreateWebhook(ctx, token, driven.WebhookRequest{
		RepoFullName: repo.FullName,
		CallbackURL:  callbackURL,
		Secret:       repo.WebhookSecret,
		Events:       webhookEvents,
	})
	if err != nil {
		return 0, fmt.Errorf("create webhook for %s: %w", repo.FullName, err)
	}
	return hookID, nil
}

// newWebhookSecret returns 32 random bytes, hex encoded.
func newWebhookSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
