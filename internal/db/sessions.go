package db

import (
	"context"
	"time"

	"github.com/kube-rca/authd/internal/model"
)

const sessionColumns = `id, user_id, COALESCE(user_agent, ''), created_at, expires_at`

func scanSession(row interface{ Scan(dest ...any) error }) (*model.Session, error) {
	var s model.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.UserAgent, &s.CreatedAt, &s.ExpiresAt); err != nil {
		if IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *pgRepo) CreateSession(ctx context.Context, session model.Session) error {
	var userAgent *string
	if session.UserAgent != "" {
		userAgent = &session.UserAgent
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO sessions (id, user_id, user_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, session.ID, session.UserID, userAgent, session.CreatedAt, session.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *pgRepo) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return scanSession(r.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

func (r *pgRepo) ExtendSessionExpiry(ctx context.Context, id string, expiresAt time.Time) (*model.Session, error) {
	return scanSession(r.q.QueryRow(ctx, `
		UPDATE sessions
		SET expires_at = GREATEST(expires_at, $2)
		WHERE id = $1
		RETURNING `+sessionColumns, id, expiresAt))
}

func (r *pgRepo) DeleteSession(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgRepo) DeleteUserSession(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgRepo) DeleteUserSessions(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `DELETE FROM sessions WHERE user_id = $1 RETURNING id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgRepo) ListActiveSessions(ctx context.Context, userID string, now time.Time) ([]model.Session, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
	`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *pgRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
