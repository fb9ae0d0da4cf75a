package application_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/tracklink/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

var testKey = bytes.Repeat([]byte{0x24}, 32)

// --- Mock implementations ---

type mockSCM struct {
	mu        sync.Mutex
	created   []driven.WebhookRequest
	deleted   []int64
	createErr error
	deleteErr error
	nextHook  int64
	remote    *driven.RemoteRepository

	// onCreate runs after a hook is created, before CreateWebhook returns.
	onCreate func(hookID int64)
}

func (m *mockSCM) GetRepository(_ context.Context, _ string, fullName string) (*driven.RemoteRepository, error) {
	if m.remote != nil {
		return m.remote, nil
	}
	return &driven.RemoteRepository{
		FullName:      fullName,
		DefaultBranch: "main",
		CloneURL:      "https://github.com/" + fullName + ".git",
	}, nil
}

func (m *mockSCM) CreateWebhook(_ context.Context, _ string, req driven.WebhookRequest) (int64, error) {
	m.mu.Lock()
	m.created = append(m.created, req)
	if m.createErr != nil {
		m.mu.Unlock()
		return 0, m.createErr
	}
	m.nextHook++
	hookID := 1000 + m.nextHook
	onCreate := m.onCreate
	m.mu.Unlock()

	if onCreate != nil {
		onCreate(hookID)
	}
	return hookID, nil
}

func (m *mockSCM) DeleteWebhook(_ context.Context, _, _ string, hookID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, hookID)
	return m.deleteErr
}

func (m *mockSCM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created) + len(m.deleted)
}

type triggerCall struct {
	job    string
	params driven.JobParameters
}

type mockRunner struct {
	mu         sync.Mutex
	triggered  []triggerCall
	createdJob []driven.JobSpec
	deletedJob []string
	triggerErr error

	// stacks limits Supports when set; nil supports every stack.
	stacks map[model.TechStack]bool
}

func (m *mockRunner) Supports(stack model.TechStack) bool {
	return m.stacks == nil || m.stacks[stack]
}

func (m *mockRunner) TriggerJob(_ context.Context, jobName string, params driven.JobParameters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered = append(m.triggered, triggerCall{job: jobName, params: params})
	return m.triggerErr
}

func (m *mockRunner) CreateJob(_ context.Context, spec driven.JobSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createdJob = append(m.createdJob, spec)
	return nil
}

func (m *mockRunner) DeleteJob(_ context.Context, jobName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedJob = append(m.deletedJob, jobName)
	return nil
}

var errUpstream = errors.New("upstream unavailable")

// --- Fixtures ---

type testEnv struct {
	db      *sqlite.DB
	tx      *sqlite.Transactor
	repos   *sqlite.RepoRepo
	commits *sqlite.CommitRepo
	prs     *sqlite.PRRepo
	tasks   *sqlite.TaskRepo
	users   *sqlite.UserRepo
	builds  *sqlite.BuildRepo
	creds   *sqlite.CredentialRepo
	leases  *sqlite.LeaseRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.NewDB(context.Background(), filepath.Join(t.TempDir(), "tracklink.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(db.Writer.DB))

	return &testEnv{
		db:      db,
		tx:      sqlite.NewTransactor(db),
		repos:   sqlite.NewRepoRepo(db),
		commits: sqlite.NewCommitRepo(db),
		prs:     sqlite.NewPRRepo(db),
		tasks:   sqlite.NewTaskRepo(db),
		users:   sqlite.NewUserRepo(db),
		builds:  sqlite.NewBuildRepo(db),
		creds:   sqlite.NewCredentialRepo(db, testKey),
		leases:  sqlite.NewLeaseRepo(db),
	}
}

func (e *testEnv) user(t *testing.T, username, email string) model.User {
	t.Helper()
	u, err := e.users.Add(context.Background(), model.User{Username: username, Email: email})
	require.NoError(t, err)
	return u
}

func (e *testEnv) task(t *testing.T, key string, status model.TaskStatus) model.Task {
	t.Helper()
	task, err := e.tasks.Add(context.Background(), model.Task{Key: key, Title: "task " + key, Status: status})
	require.NoError(t, err)
	return task
}

func (e *testEnv) taskStatus(t *testing.T, key string) model.TaskStatus {
	t.Helper()
	task, err := e.tasks.GetByKey(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task.Status
}

func (e *testEnv) repo(t *testing.T, r model.Repository) model.Repository {
	t.Helper()
	if r.WebhookSecret == "" {
		r.WebhookSecret = "s3cret"
	}
	if r.CIJobName == "" {
		r.CIJobName = "job-" + r.Name()
	}
	if r.TechStack == "" {
		r.TechStack = model.TechStackGo
	}
	added, err := e.repos.Add(context.Background(), r)
	require.NoError(t, err)
	return added
}

// creator adds a user holding a GitHub token.
func (e *testEnv) creator(t *testing.T) model.User {
	t.Helper()
	u := e.user(t, "creator", "creator@example.com")
	require.NoError(t, e.creds.Set(context.Background(), u.ID, model.CredentialServiceGitHub, "ghp_creator"))
	return u
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
