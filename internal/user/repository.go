package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrNotFound = errors.New("user not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, username, password_hash, failed_login_attempts, locked_until, last_login_attempt, created_at, updated_at`

func (r *Repository) GetByUsername(ctx context.Context, username string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)

	return scanUser(row)
}

func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	return scanUser(row)
}

// Save writes back the mutable authentication fields of an existing user.
// This is a plain read-modify-write; two concurrent failed logins for the
// same account may lose one counter increment. That relaxation is accepted
// rather than serialized with a row lock.
func (r *Repository) Save(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = $2,
			locked_until = $3,
			last_login_attempt = $4,
			updated_at = $5
		WHERE id = $1
	`, u.ID, u.FailedLoginAttempts, nullableTime(u.LockedUntil), nullableTime(u.LastLoginAttempt), u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save user rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) Create(ctx context.Context, username, plainPassword string) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := User{
		ID:           id.String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, failed_login_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)
	`, u.ID, u.Username, u.PasswordHash, now)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

// Seed creates the given demo accounts when they do not exist yet.
func (r *Repository) Seed(ctx context.Context, credentials map[string]string) error {
	for username, password := range credentials {
		_, err := r.GetByUsername(ctx, username)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		if _, err := r.Create(ctx, username, password); err != nil {
			return fmt.Errorf("seed user %s: %w", username, err)
		}
	}

	return nil
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	var lockedUntil, lastAttempt sql.NullTime

	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FailedLoginAttempts,
		&lockedUntil, &lastAttempt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}

	if lockedUntil.Valid {
		value := lockedUntil.Time.UTC()
		u.LockedUntil = &value
	}
	if lastAttempt.Valid {
		value := lastAttempt.Time.UTC()
		u.LastLoginAttempt = &value
	}

	return u, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
