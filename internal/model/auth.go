package model

import "time"

type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email,min=1,max=225"`
	Password        string `json:"password" binding:"required,min=6,max=225"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,min=6,max=225,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,min=1,max=225"`
	Password string `json:"password" binding:"required,min=6,max=225"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email,min=1,max=225"`
}

type ResetPasswordRequest struct {
	Password         string `json:"password" binding:"required,min=6,max=225"`
	VerificationCode string `json:"verificationCode" binding:"required,min=1,max=24"`
}

type VerifyEmailParams struct {
	Code string `uri:"code" binding:"required,min=1,max=24"`
}

// AuthContext identifies the caller of an authenticated request.
type AuthContext struct {
	UserID    string
	SessionID string
}

// AuthResult is returned by account creation and login.
type AuthResult struct {
	User         SafeUser
	AccessToken  string
	RefreshToken string
}

// RefreshResult carries a new access token and, when the session was
// extended, a new refresh token.
type RefreshResult struct {
	AccessToken     string
	NewRefreshToken string
}

type PasswordResetResult struct {
	URL       string
	EmailID   string
	ExpiresAt time.Time
}

type RegisterResponse struct {
	User SafeUser `json:"user"`
}

type SessionListResponse []SessionView
