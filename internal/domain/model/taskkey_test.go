package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractTaskKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"prefix in message", "Fix bug PROJ-007", "PROJ-007"},
		{"key first", "PROJ-12: add endpoint", "PROJ-12"},
		{"first of several", "ABC-1 and XYZ-2", "ABC-1"},
		{"lowercase ignored", "proj-12 tweak", ""},
		{"no digits", "PROJ- cleanup", ""},
		{"digits only", "bump to 1-2", ""},
		{"empty", "", ""},
		{"embedded in branch", "feature/OPS-42-retry", "OPS-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTaskKey(tt.in))
		})
	}
}

func TestExtractTaskKeyFromPR(t *testing.T) {
	assert.Equal(t, "PROJ-7", ExtractTaskKeyFromPR("PROJ-7 hotfix", "feature/OLD-1"), "title wins")
	assert.Equal(t, "OLD-1", ExtractTaskKeyFromPR("hotfix", "feature/OLD-1"), "branch fallback")
	assert.Equal(t, "", ExtractTaskKeyFromPR("hotfix", "main"))
}

func TestRepository_PendingSince(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	grace := 10 * time.Minute

	old := Repository{WebhookState: WebhookStatePending, CreatedAt: now.Add(-11 * time.Minute)}
	fresh := Repository{WebhookState: WebhookStatePending, CreatedAt: now.Add(-2 * time.Minute)}
	active := Repository{WebhookState: WebhookStateActive, CreatedAt: now.Add(-time.Hour)}

	assert.True(t, old.PendingSince(now, grace))
	assert.False(t, fresh.PendingSince(now, grace))
	assert.False(t, active.PendingSince(now, grace))
}

func TestRepository_OwnerAndName(t *testing.T) {
	r := Repository{FullName: "octocat/hello-world"}
	assert.Equal(t, "octocat", r.Owner())
	assert.Equal(t, "hello-world", r.Name())
}
