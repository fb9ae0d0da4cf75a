package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() ensures isolation between parallel tests.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it's a safe SQLite URI filename component
	// and cannot be misinterpreted as query parameters in the "file:%s?..." DSN.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		safeName,
	)

	writer, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test db writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test db writer: %v", err)
	}

	reader, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}

	if err := RunMigrations(db.Writer.DB); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// seedRepo inserts a repository fixture and returns it with its ID.
func seedRepo(t *testing.T, db *DB, fullName string) model.Repository {
	t.Helper()

	repo, err := NewRepoRepo(db).Add(context.Background(), model.Repository{
		FullName:      fullName,
		WebhookSecret: "s3cret",
		CIJobName:     "build-" + fullName,
		TechStack:     model.TechStackGo,
	})
	if err != nil {
		t.Fatalf("seed repository: %v", err)
	}
	return repo
}

// seedTask inserts a task fixture and returns it with its ID.
func seedTask(t *testing.T, db *DB, key string, status model.TaskStatus) model.Task {
	t.Helper()

	task, err := NewTaskRepo(db).Add(context.Background(), model.Task{Key: key, Title: "task " + key, Status: status})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

// seedUser inserts a user fixture and returns it with its ID.
func seedUser(t *testing.T, db *DB, username, email string) model.User {
	t.Helper()

	user, err := NewUserRepo(db).Add(context.Background(), model.User{Username: username, Email: email})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}
