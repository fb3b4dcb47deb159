package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schoolmaps/internal/app/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// User is an account row.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	PhotoURL     string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Repository persists accounts.
type Repository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a Repository on the users table.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const userColumns = `id, email, password_hash, display_name, photo_url, created_at, last_login_at`

func scanUser(row pgx.Row) (User, error) {
	var (
		u         User
		id        pgtype.UUID
		lastLogin pgtype.Timestamptz
	)

	err := row.Scan(&id, &u.Email, &u.PasswordHash, &u.DisplayName, &u.PhotoURL, &u.CreatedAt, &lastLogin)
	if err != nil {
		if db.IsNoRows(err) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}

	u.ID = uuid.UUID(id.Bytes).String()
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}

	return u, nil
}

func (r *pgRepository) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, photo_url)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.PhotoURL,
	)

	created, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return created, nil
}

func (r *pgRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return scanUser(row)
}

func (r *pgRepository) GetUserByID(ctx context.Context, id string) (User, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}

	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, parsed)
	return scanUser(row)
}

func (r *pgRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *pgRepository) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}
