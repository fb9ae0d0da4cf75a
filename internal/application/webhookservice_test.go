package application_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/tracklink/internal/adapter/driven/github"
	"github.com/ericfisherdev/tracklink/internal/application"
	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

type webhookHarness struct {
	env    *testEnv
	runner *mockRunner
	svc    *application.WebhookService
}

func newWebhookHarness(t *testing.T) *webhookHarness {
	t.Helper()

	env := newTestEnv(t)
	runner := &mockRunner{}
	builds := application.NewBuildService(env.tx, env.builds, env.creds, runner, "https://tracklink.example.com", 0, nil)
	svc := application.NewWebhookService(
		env.repos,
		github.NewWebhookCodec(),
		application.NewIngestService(env.tx, nil),
		application.NewPullRequestService(env.tx, env.repos, env.prs, builds, nil),
		nil,
	)
	return &webhookHarness{env: env, runner: runner, svc: svc}
}

func (h *webhookHarness) deliver(t *testing.T, event, secret, body string) (application.WebhookOutcome, error) {
	t.Helper()
	return h.svc.Handle(context.Background(), application.WebhookDelivery{
		Event:      event,
		Signature:  sign(secret, []byte(body)),
		DeliveryID: "d-1",
		Body:       []byte(body),
	})
}

func pushBody(repo, hash, message string) string {
	return fmt.Sprintf(`{
		"ref": "refs/heads/main",
		"repository": {"full_name": %q},
		"commits": [{"id": %q, "message": %q, "timestamp": "2026-03-01T12:00:00Z",
			"author": {"name": "Dev", "email": "dev@example.com"}}]
	}`, repo, hash, message)
}

func pullBody(repo, action string, merged bool, title, sha string) string {
	return fmt.Sprintf(`{
		"action": %q,
		"repository": {"full_name": %q},
		"pull_request": {"id": 8801, "number": 4, "title": %q, "body": "",
			"html_url": "https://github.com/acme/api/pull/4", "merged": %t,
			"merge_commit_sha": %q, "head": {"ref": "hotfix"}, "user": {"login": "dev"},
			"created_at": "2026-03-01T13:00:00Z"}
	}`, action, repo, title, merged, sha)
}

func TestWebhook_EndToEnd(t *testing.T) {
	h := newWebhookHarness(t)
	repo := h.env.repo(t, model.Repository{FullName: "acme/api", WebhookSecret: "topsecret"})
	task := h.env.task(t, "PROJ-007", model.TaskStatusInProgress)
	ctx := context.Background()

	outcome, err := h.deliver(t, "push", "topsecret", pushBody("acme/api", "c0ffee", "Fix bug PROJ-007"))
	require.NoError(t, err)
	assert.Equal(t, application.WebhookProcessed, outcome)

	commit, err := h.env.commits.GetByHash(ctx, repo.ID, "c0ffee")
	require.NoError(t, err)
	require.NotNil(t, commit)
	require.NotNil(t, commit.TaskID)
	assert.Equal(t, task.ID, *commit.TaskID)

	_, err = h.deliver(t, "pull_request", "topsecret", pullBody("acme/api", "opened", false, "PROJ-007 hotfix", ""))
	require.NoError(t, err)
	_, err = h.deliver(t, "pull_request", "topsecret", pullBody("acme/api", "closed", true, "PROJ-007 hotfix", "feedface"))
	require.NoError(t, err)

	pr, err := h.env.prs.GetByProviderID(ctx, 8801)
	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, model.PRStatusMerged, pr.Status)

	assert.Equal(t, model.TaskStatusInProgress, h.env.taskStatus(t, "PROJ-007"), "IN_PROGRESS to QA is not a legal move")

	unfinished, err := h.env.builds.ListUnfinished(ctx)
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, "feedface", unfinished[0].CommitHash)
	require.Len(t, h.runner.triggered, 1)
}

func TestWebhook_BadSignature(t *testing.T) {
	h := newWebhookHarness(t)
	repo := h.env.repo(t, model.Repository{FullName: "acme/api", WebhookSecret: "topsecret"})
	body := pushBody("acme/api", "c0ffee", "PROJ-1")

	_, err := h.deliver(t, "push", "wrong-secret", body)
	assert.ErrorIs(t, err, application.ErrUnauthorized)

	_, err = h.svc.Handle(context.Background(), application.WebhookDelivery{Event: "push", Body: []byte(body)})
	assert.ErrorIs(t, err, application.ErrUnauthorized, "missing signature")

	all, err := h.env.commits.ListByRepo(context.Background(), repo.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWebhook_UntrackedRepositoryIgnored(t *testing.T) {
	h := newWebhookHarness(t)

	outcome, err := h.deliver(t, "push", "anything", pushBody("acme/other", "c0ffee", "x"))
	require.NoError(t, err)
	assert.Equal(t, application.WebhookIgnored, outcome)
}

func TestWebhook_UnhandledKindIgnored(t *testing.T) {
	h := newWebhookHarness(t)
	h.env.repo(t, model.Repository{FullName: "acme/api", WebhookSecret: "topsecret"})

	outcome, err := h.deliver(t, "issues", "topsecret", `{"action":"opened","repository":{"full_name":"acme/api"}}`)
	require.NoError(t, err)
	assert.Equal(t, application.WebhookIgnored, outcome)
}

func TestWebhook_PingActivates(t *testing.T) {
	tests := []struct {
		name     string
		stored   *int64
		pingHook int64
		want     model.WebhookState
	}{
		{name: "matching hook", stored: ptr(int64(42)), pingHook: 42, want: model.WebhookStateActive},
		{name: "no stored hook", stored: nil, pingHook: 42, want: model.WebhookStateActive},
		{name: "stale hook", stored: ptr(int64(43)), pingHook: 42, want: model.WebhookStatePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newWebhookHarness(t)
			repo := h.env.repo(t, model.Repository{FullName: "acme/api", WebhookSecret: "topsecret"})
			if tt.stored != nil {
				require.NoError(t, h.env.repos.SetWebhookID(context.Background(), repo.ID, *tt.stored))
			}

			body := fmt.Sprintf(`{"zen":"Keep it logically awesome.","hook_id":%d,"repository":{"full_name":"acme/api"}}`, tt.pingHook)
			outcome, err := h.deliver(t, "ping", "topsecret", body)
			require.NoError(t, err)
			assert.Equal(t, application.WebhookProcessed, outcome)
			assert.Equal(t, tt.want, h.env.repoByID(t, repo.ID).WebhookState)
		})
	}
}

func TestWebhook_PingLeavesFailedAlone(t *testing.T) {
	h := newWebhookHarness(t)
	repo := h.env.repo(t, model.Repository{FullName: "acme/api", WebhookSecret: "topsecret"})
	_, err := h.env.repos.TransitionWebhookState(context.Background(), repo.ID, model.WebhookStateFailed)
	require.NoError(t, err)

	_, err = h.deliver(t, "ping", "topsecret", `{"hook_id":1,"repository":{"full_name":"acme/api"}}`)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookStateFailed, h.env.repoByID(t, repo.ID).WebhookState)
}

func TestWebhook_MalformedPayload(t *testing.T) {
	h := newWebhookHarness(t)
	h.env.repo(t, model.Repository{FullName: "acme/api", WebhookSecret: "topsecret"})

	_, err := h.deliver(t, "push", "topsecret", `{"repository":{"full_name":"acme/api"},"commits":"nope"}`)
	assert.ErrorIs(t, err, application.ErrMalformedPayload)
}

func ptr[T any](v T) *T { return &v }
