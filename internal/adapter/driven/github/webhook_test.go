package github_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/tracklink/internal/adapter/driven/github"
	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const pushPayload = `{
	"ref": "refs/heads/main",
	"repository": {"full_name": "octocat/hello-world"},
	"commits": [
		{
			"id": "abc123",
			"message": "PROJ-7 fix login",
			"timestamp": "2026-02-01T09:30:00Z",
			"author": {"name": "Octo Cat", "email": "octo@example.com"}
		}
	]
}`

const prPayload = `{
	"action": "closed",
	"repository": {"full_name": "octocat/hello-world"},
	"pull_request": {
		"id": 5001,
		"number": 12,
		"title": "PROJ-7 login fix",
		"body": "Fixes login",
		"html_url": "https://github.com/octocat/hello-world/pull/12",
		"merged": true,
		"merge_commit_sha": "deadbeef",
		"created_at": "2026-02-01T09:00:00Z",
		"head": {"ref": "feature/PROJ-7"},
		"user": {"login": "octocat"}
	}
}`

func TestWebhookCodec_Verify(t *testing.T) {
	codec := ghAdapter.NewWebhookCodec()
	body := []byte(pushPayload)

	require.NoError(t, codec.Verify(body, sign(body, "s3cret"), "s3cret"))

	tampered := append([]byte{}, body...)
	tampered[10] ^= 0x01
	assert.ErrorIs(t, codec.Verify(tampered, sign(body, "s3cret"), "s3cret"), driven.ErrInvalidSignature)

	assert.ErrorIs(t, codec.Verify(body, sign(body, "other"), "s3cret"), driven.ErrInvalidSignature)
	assert.ErrorIs(t, codec.Verify(body, "", "s3cret"), driven.ErrInvalidSignature)
	assert.ErrorIs(t, codec.Verify(body, sign(body, ""), ""), driven.ErrInvalidSignature, "empty secret never verifies")
	assert.ErrorIs(t, codec.Verify(body, "sha256=zz", "s3cret"), driven.ErrInvalidSignature)
}

func TestWebhookCodec_RepositoryName(t *testing.T) {
	codec := ghAdapter.NewWebhookCodec()

	name, err := codec.RepositoryName([]byte(pushPayload))
	require.NoError(t, err)
	assert.Equal(t, "octocat/hello-world", name)

	_, err = codec.RepositoryName([]byte(`{"zen": "hi"}`))
	assert.Error(t, err)

	_, err = codec.RepositoryName([]byte(`not json`))
	assert.Error(t, err)
}

func TestWebhookCodec_DecodePush(t *testing.T) {
	codec := ghAdapter.NewWebhookCodec()

	event, err := codec.Decode(ghAdapter.EventPush, []byte(pushPayload))
	require.NoError(t, err)

	push, ok := event.(model.PushEvent)
	require.True(t, ok)
	assert.Equal(t, "octocat/hello-world", push.Repo)
	assert.Equal(t, "refs/heads/main", push.Ref)
	require.Len(t, push.Commits, 1)
	assert.Equal(t, "abc123", push.Commits[0].Hash)
	assert.Equal(t, "PROJ-7 fix login", push.Commits[0].Message)
	assert.Equal(t, "octo@example.com", push.Commits[0].AuthorEmail)
	assert.True(t, push.Commits[0].Timestamp.Equal(time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)))
}

func TestWebhookCodec_DecodePullRequest(t *testing.T) {
	codec := ghAdapter.NewWebhookCodec()

	event, err := codec.Decode(ghAdapter.EventPullRequest, []byte(prPayload))
	require.NoError(t, err)

	pr, ok := event.(model.PullRequestEvent)
	require.True(t, ok)
	assert.Equal(t, model.PRActionClosed, pr.Action)
	assert.Equal(t, int64(5001), pr.ProviderID)
	assert.Equal(t, 12, pr.Number)
	assert.True(t, pr.Merged)
	assert.Equal(t, "deadbeef", pr.MergeCommitSHA)
	assert.Equal(t, "feature/PROJ-7", pr.SourceBranch)
	assert.Equal(t, "octocat", pr.AuthorLogin)
}

func TestWebhookCodec_DecodePing(t *testing.T) {
	codec := ghAdapter.NewWebhookCodec()

	event, err := codec.Decode(ghAdapter.EventPing, []byte(`{"zen": "Keep it simple.", "hook_id": 77, "repository": {"full_name": "octocat/hello-world"}}`))
	require.NoError(t, err)

	ping, ok := event.(model.PingEvent)
	require.True(t, ok)
	assert.Equal(t, int64(77), ping.HookID)
	assert.Equal(t, "octocat/hello-world", ping.Repo)
}

func TestWebhookCodec_DecodeUnhandledKind(t *testing.T) {
	codec := ghAdapter.NewWebhookCodec()

	event, err := codec.Decode("issues", []byte(`{"repository": {"full_name": "octocat/hello-world"}}`))
	require.NoError(t, err)
	assert.Equal(t, model.IgnoredEvent{Repo: "octocat/hello-world", Kind: "issues"}, event)
}

func TestWebhookCodec_DecodeMalformed(t *testing.T) {
	codec := ghAdapter.NewWebhookCodec()

	_, err := codec.Decode(ghAdapter.EventPush, []byte(`{"commits": "nope"`))
	assert.Error(t, err)
}
