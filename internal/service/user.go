package service

import (
	"context"
	"errors"

	"github.com/kube-rca/authd/internal/db"
	"github.com/kube-rca/authd/internal/model"
)

func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.SafeUser, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, notFound(msgUserNotFound)
	}
	if err != nil {
		return nil, internal("Failed to load user", err)
	}
	view := model.ToSafeView(*user)
	return &view, nil
}

// ListSessions returns the caller's live sessions, newest first, marking the
// one the request was made with.
func (s *AuthService) ListSessions(ctx context.Context, auth model.AuthContext) ([]model.SessionView, error) {
	sessions, err := s.store.ListActiveSessions(ctx, auth.UserID, s.clock.Now())
	if err != nil {
		return nil, internal("Failed to list sessions", err)
	}

	views := make([]model.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, model.SessionView{
			ID:        sess.ID,
			UserAgent: sess.UserAgent,
			CreatedAt: sess.CreatedAt,
			IsCurrent: sess.ID == auth.SessionID,
		})
	}
	return views, nil
}

// DeleteSession revokes one of the caller's sessions.
func (s *AuthService) DeleteSession(ctx context.Context, auth model.AuthContext, sessionID string) (err error) {
	defer s.observe("delete_session", &err)

	deleted, err := s.store.DeleteUserSession(ctx, sessionID, auth.UserID)
	if err != nil {
		return internal("Failed to remove session", err)
	}
	if !deleted {
		return notFound(msgSessionNotFound)
	}
	s.revoke(ctx, sessionID)
	return nil
}

// PurgeExpired deletes sessions and codes whose expiry has passed.
func (s *AuthService) PurgeExpired(ctx context.Context) (sessions, codes int64, err error) {
	now := s.clock.Now()
	sessions, err = s.store.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	codes, err = s.store.DeleteExpiredCodes(ctx, now)
	if err != nil {
		return sessions, 0, err
	}
	return sessions, codes, nil
}
