package db

import (
	"context"
	"time"

	"github.com/kube-rca/authd/internal/model"
)

func (r *pgRepo) CreateCode(ctx context.Context, code model.VerificationCode) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO verification_codes (id, user_id, kind, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, code.ID, code.UserID, string(code.Kind), code.CreatedAt, code.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *pgRepo) FindValidCode(ctx context.Context, id string, kind model.CodeKind, now time.Time) (*model.VerificationCode, error) {
	var c model.VerificationCode
	var k string
	err := r.q.QueryRow(ctx, `
		SELECT id, user_id, kind, created_at, expires_at
		FROM verification_codes
		WHERE id = $1 AND kind = $2 AND expires_at > $3`+r.lockClause(),
		id, string(kind), now,
	).Scan(&c.ID, &c.UserID, &k, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Kind = model.CodeKind(k)
	return &c, nil
}

func (r *pgRepo) CountCodesSince(ctx context.Context, userID string, kind model.CodeKind, since time.Time) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT count(*)
		FROM verification_codes
		WHERE user_id = $1 AND kind = $2 AND created_at > $3
	`, userID, string(kind), since).Scan(&n)
	return n, err
}

func (r *pgRepo) ConsumeCode(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM verification_codes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepo) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM verification_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
