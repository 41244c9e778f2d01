package db

import (
	"context"
	"time"

	"github.com/kube-rca/authd/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	// LockUser serialises concurrent flows on one user until the enclosing
	// transaction ends. Outside a transaction it only checks existence.
	LockUser(ctx context.Context, id string) error
	SetUserVerified(ctx context.Context, id string, now time.Time) (*model.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string, now time.Time) (*model.User, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	// ExtendSessionExpiry moves expires_at forward to expiresAt. It never
	// shortens a session.
	ExtendSessionExpiry(ctx context.Context, id string, expiresAt time.Time) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
	DeleteUserSession(ctx context.Context, id, userID string) (bool, error)
	DeleteUserSessions(ctx context.Context, userID string) ([]string, error)
	ListActiveSessions(ctx context.Context, userID string, now time.Time) ([]model.Session, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type CodeRepository interface {
	CreateCode(ctx context.Context, code model.VerificationCode) error
	// FindValidCode matches id, kind and expiry in one lookup.
	FindValidCode(ctx context.Context, id string, kind model.CodeKind, now time.Time) (*model.VerificationCode, error)
	CountCodesSince(ctx context.Context, userID string, kind model.CodeKind, since time.Time) (int, error)
	// ConsumeCode deletes the code. A code that is already gone yields
	// ErrNotFound, so at most one caller consumes it.
	ConsumeCode(ctx context.Context, id string) error
	DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error)
}

type Repository interface {
	UserRepository
	SessionRepository
	CodeRepository
}

// Store is a Repository that can also run several calls atomically.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
	Ping(ctx context.Context) error
	Name() string
}
