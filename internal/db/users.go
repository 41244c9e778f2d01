package db

import (
	"context"
	"time"

	"github.com/kube-rca/authd/internal/model"
)

const userColumns = `id, email, password_hash, verified, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *pgRepo) CreateUser(ctx context.Context, user model.User) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.PasswordHash, user.Verified, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *pgRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *pgRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *pgRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func (r *pgRepo) LockUser(ctx context.Context, id string) error {
	var got string
	err := r.q.QueryRow(ctx, `SELECT id FROM users WHERE id = $1`+r.lockClause(), id).Scan(&got)
	if IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

func (r *pgRepo) SetUserVerified(ctx context.Context, id string, now time.Time) (*model.User, error) {
	return scanUser(r.q.QueryRow(ctx, `
		UPDATE users
		SET verified = TRUE, updated_at = $2
		WHERE id = $1
		RETURNING `+userColumns, id, now))
}

func (r *pgRepo) UpdateUserPassword(ctx context.Context, id, passwordHash string, now time.Time) (*model.User, error) {
	return scanUser(r.q.QueryRow(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+userColumns, id, passwordHash, now))
}
