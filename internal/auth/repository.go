package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const uniqueViolationCode = "23505"

// Repository provides access to user and session storage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, user_name, display_name, password_hash, password_salt, global_permissions, is_banned, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.UserName, &u.DisplayName, &u.PasswordHash, &u.PasswordSalt,
		&u.GlobalPermissions, &u.IsBanned, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts a new user record.
func (r *Repository) CreateUser(ctx context.Context, user User) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO users (id, user_name, display_name, password_hash, password_salt, global_permissions, is_banned)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + userColumns + `;`

	stored, err := scanUser(r.pool.QueryRow(ctx, query,
		user.ID, user.UserName, user.DisplayName, user.PasswordHash, user.PasswordSalt,
		user.GlobalPermissions, user.IsBanned))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return User{}, ErrUserNameTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return stored, nil
}

// FindUserByID fetches a user by id.
func (r *Repository) FindUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	user, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// FindUserByUserName fetches a user by their unique user name.
func (r *Repository) FindUserByUserName(ctx context.Context, userName string) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	user, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_name = $1;`, userName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user by name: %w", err)
	}
	return user, nil
}

// ListUsers returns every user record.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at;`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpdateUserProfile updates mutable profile fields.
func (r *Repository) UpdateUserProfile(ctx context.Context, id uuid.UUID, displayName string) error {
	return r.updateUser(ctx, id,
		`UPDATE users SET display_name = $2, updated_at = now() WHERE id = $1;`, displayName)
}

// UpdateUserPassword replaces the stored hash and salt.
func (r *Repository) UpdateUserPassword(ctx context.Context, id uuid.UUID, hash, salt string) error {
	return r.updateUser(ctx, id,
		`UPDATE users SET password_hash = $2, password_salt = $3, updated_at = now() WHERE id = $1;`, hash, salt)
}

// SetBanningStatus flips the banned flag.
func (r *Repository) SetBanningStatus(ctx context.Context, id uuid.UUID, isBanned bool) error {
	return r.updateUser(ctx, id,
		`UPDATE users SET is_banned = $2, updated_at = now() WHERE id = $1;`, isBanned)
}

// SetGlobalPermissions replaces the global permission set.
func (r *Repository) SetGlobalPermissions(ctx context.Context, id uuid.UUID, permissions map[string]bool) error {
	return r.updateUser(ctx, id,
		`UPDATE users SET global_permissions = $2, updated_at = now() WHERE id = $1;`, permissions)
}

func (r *Repository) updateUser(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

const sessionColumns = `id, user_id, api_key, has_expired, expired_at, expire_reason, created_at, updated_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.APIKey, &s.HasExpired, &s.ExpiredAt,
		&s.ExpireReason, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// CreateSession inserts a new session record.
func (r *Repository) CreateSession(ctx context.Context, session Session) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO sessions (id, user_id, api_key)
VALUES ($1, $2, $3)
RETURNING ` + sessionColumns + `;`

	stored, err := scanSession(r.pool.QueryRow(ctx, query, session.ID, session.UserID, session.APIKey))
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return stored, nil
}

// FindSessionByAPIKey resolves the bearer credential.
func (r *Repository) FindSessionByAPIKey(ctx context.Context, apiKey string) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	session, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE api_key = $1;`, apiKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

// ListSessions returns a user's sessions, newest first.
func (r *Repository) ListSessions(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ExpireSession marks a single session as expired.
func (r *Repository) ExpireSession(ctx context.Context, sessionID uuid.UUID, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
UPDATE sessions
SET has_expired = true, expired_at = now(), expire_reason = $2, updated_at = now()
WHERE id = $1;`, sessionID, reason)
	if err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ExpireAllSessions marks every live session of a user as expired.
func (r *Repository) ExpireAllSessions(ctx context.Context, userID uuid.UUID, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
UPDATE sessions
SET has_expired = true, expired_at = now(), expire_reason = $2, updated_at = now()
WHERE user_id = $1 AND has_expired = false;`, userID, reason)
	if err != nil {
		return fmt.Errorf("expire sessions: %w", err)
	}
	return nil
}
