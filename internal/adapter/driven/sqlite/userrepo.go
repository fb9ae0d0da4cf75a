package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UserStore = (*UserRepo)(nil)

// UserRepo is the SQLite implementation of the UserStore port interface.
type UserRepo struct {
	conn conn
}

// NewUserRepo creates a new UserRepo backed by the given DB.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{conn: db.conn()}
}

const userColumns = `id, username, email, display_name, created_at`

type userRow struct {
	ID          int64     `db:"id"`
	Username    string    `db:"username"`
	Email       string    `db:"email"`
	DisplayName string    `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r userRow) toModel() model.User {
	return model.User{
		ID:          r.ID,
		Username:    r.Username,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		CreatedAt:   r.CreatedAt,
	}
}

// Add inserts a new user. Returns an error if the username already exists
// (unique constraint violation).
func (r *UserRepo) Add(ctx context.Context, user model.User) (model.User, error) {
	const query = `INSERT INTO users (username, email, display_name, created_at) VALUES (?, ?, ?, ?)`

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC()

	result, err := r.conn.writer.ExecContext(ctx, query, user.Username, user.Email, user.DisplayName, user.CreatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("add user %q: %w", user.Username, err)
	}

	user.ID, err = result.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("read user id: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by ID. Returns nil, nil if not found.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// GetByEmail retrieves the oldest user with the given email. An empty email
// never matches.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, nil
	}

	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY id LIMIT 1`, email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by provider login. Returns nil, nil if not found.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if username == "" {
		return nil, nil
	}

	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return user, nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, args ...any) (*model.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.conn.reader, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user := row.toModel()
	return &user, nil
}
