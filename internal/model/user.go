package model

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser is the outward-facing projection of User. It never carries the
// password hash.
type SafeUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func ToSafeView(u User) SafeUser {
	return SafeUser{
		ID:        u.ID,
		Email:     u.Email,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type Session struct {
	ID        string
	UserID    string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Live reports whether the session is still valid at now.
func (s Session) Live(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

type SessionView struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	IsCurrent bool      `json:"isCurrent,omitempty"`
}

type CodeKind string

const (
	CodeEmailVerification CodeKind = "email_verification"
	CodePasswordReset     CodeKind = "password_reset"
)

func (k CodeKind) Valid() bool {
	return k == CodeEmailVerification || k == CodePasswordReset
}

type VerificationCode struct {
	ID        string
	UserID    string
	Kind      CodeKind
	CreatedAt time.Time
	ExpiresAt time.Time
}
