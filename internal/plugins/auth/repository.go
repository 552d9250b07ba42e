package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/scribe/internal/apperror"
)

// mysqlDuplicateEntry is the MariaDB error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// UserRepository is the data access contract for credentials.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error
	TouchLastSignIn(ctx context.Context, id string, at time.Time) error
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a user repository backed by the given pool.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a user. A duplicate email surfaces as a 409 so a race
// between two signups for one address still reports cleanly.
func (r *userRepository) Create(ctx context.Context, user *User) error {
	meta, err := encodeMetadata(user.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, meta, user.CreatedAt, user.UpdatedAt,
	)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return apperror.NewConflict("an account with this email already exists")
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

const selectUser = `SELECT id, email, password_hash, metadata, created_at, updated_at, last_sign_in
	FROM users`

// FindByID returns apperror.NotFound when the id is unknown.
func (r *userRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
}

// FindByEmail returns apperror.NotFound when the email is unknown.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectUser+` WHERE email = ?`, email))
}

func (r *userRepository) scanOne(row *sql.Row) (*User, error) {
	var (
		u    User
		meta []byte
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &meta, &u.CreatedAt, &u.UpdatedAt, &u.LastSignIn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &u.Metadata); err != nil {
			return nil, fmt.Errorf("decoding user metadata: %w", err)
		}
	}
	return &u, nil
}

// UpdatePassword replaces the stored hash.
func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireRow(res)
}

// UpdateMetadata replaces the metadata document.
func (r *userRepository) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error {
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET metadata = ?, updated_at = ? WHERE id = ?`,
		meta, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating metadata: %w", err)
	}
	return requireRow(res)
}

// TouchLastSignIn records a successful sign-in.
func (r *userRepository) TouchLastSignIn(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_sign_in = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("updating last sign in: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("user not found")
	}
	return nil
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding user metadata: %w", err)
	}
	return b, nil
}
