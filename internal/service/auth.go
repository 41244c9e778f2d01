package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kube-rca/authd/internal/client"
	"github.com/kube-rca/authd/internal/config"
	"github.com/kube-rca/authd/internal/db"
	"github.com/kube-rca/authd/internal/logging"
	"github.com/kube-rca/authd/internal/model"
	"github.com/kube-rca/authd/internal/password"
	"github.com/kube-rca/authd/internal/template"
	"github.com/kube-rca/authd/internal/token"
)

const (
	emailVerificationTTL = 365 * 24 * time.Hour
	passwordResetTTL     = time.Hour
	resetRateWindow      = 5 * time.Minute
	// The window admits exactly one password-reset code per user: a request
	// fails once any earlier code was created inside it.
	resetRateLimit = 1

	msgInvalidCredentials = "Invalid email or password"
	msgInvalidRefresh     = "Invalid refresh token"
	msgInvalidAccess      = "Invalid access token"
	msgInvalidCode        = "Invalid or expired verification code"
	msgEmailInUse         = "Email already in use"
	msgUserNotFound       = "User not found"
	msgSessionNotFound    = "Session not found"
	msgTooManyRequests    = "Too many requests. Please try again later"
)

type Mailer interface {
	Send(ctx context.Context, msg client.Email) (string, error)
}

type Blocklist interface {
	Block(ctx context.Context, sessionID string, ttl time.Duration) error
	IsBlocked(ctx context.Context, sessionID string) (bool, error)
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// Recorder receives flow and mail outcomes. *metrics.Metrics implements it.
type Recorder interface {
	ObserveFlow(flow, result string)
	ObserveMail(name string, err error)
}

type CookieConfig struct {
	Domain        string
	Secure        bool
	SameSite      http.SameSite
	AccessMaxAge  int
	RefreshMaxAge int
}

// Dependencies are the collaborators of AuthService. Store and Mailer are
// required. Blocklist and Metrics may be nil.
type Dependencies struct {
	Store     db.Store
	Mailer    Mailer
	Blocklist Blocklist
	Clock     Clock
	Logger    logging.Logger
	Metrics   Recorder
}

type AuthService struct {
	store     db.Store
	mailer    Mailer
	blocklist Blocklist
	clock     Clock
	logger    logging.Logger
	metrics   Recorder

	tokens    *token.Codec
	hasher    PasswordHasher
	dummyHash string

	appOrigin        string
	sessionTTL       time.Duration
	refreshThreshold time.Duration
	cookieCfg        CookieConfig
}

func NewAuthService(deps Dependencies, cfg config.AuthConfig, appOrigin string) (*AuthService, error) {
	if deps.Store == nil || deps.Mailer == nil {
		return nil, fmt.Errorf("%w: store and mailer are required", ErrMisconfigured)
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}

	accessTTL, err := time.ParseDuration(cfg.AccessTTL)
	if err != nil || accessTTL <= 0 {
		return nil, fmt.Errorf("%w: invalid JWT_ACCESS_TTL", ErrMisconfigured)
	}

	sessionTTL, err := time.ParseDuration(cfg.SessionTTL)
	if err != nil || sessionTTL <= 0 {
		return nil, fmt.Errorf("%w: invalid SESSION_TTL", ErrMisconfigured)
	}

	threshold, err := time.ParseDuration(cfg.SessionRefreshThreshold)
	if err != nil || threshold < 0 || threshold >= sessionTTL {
		return nil, fmt.Errorf("%w: invalid SESSION_REFRESH_THRESHOLD", ErrMisconfigured)
	}

	tokens, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     accessTTL,
		RefreshTTL:    sessionTTL,
	}, deps.Clock.Now)
	if err != nil {
		return nil, fmt.Errorf("%w: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set and differ", ErrMisconfigured)
	}

	bcryptCost := 0
	if strings.TrimSpace(cfg.BcryptCost) != "" {
		bcryptCost, err = strconv.Atoi(strings.TrimSpace(cfg.BcryptCost))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid BCRYPT_COST", ErrMisconfigured)
		}
	}
	hasher, err := password.NewHasher(password.Config{Algorithm: cfg.PasswordHasher, BcryptCost: bcryptCost})
	if err != nil {
		return nil, fmt.Errorf("%w: invalid PASSWORD_HASHER or BCRYPT_COST", ErrMisconfigured)
	}
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	cookieSecure, err := parseBool(cfg.CookieSecure, true)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid COOKIE_SECURE", ErrMisconfigured)
	}

	cookieSameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid COOKIE_SAMESITE", ErrMisconfigured)
	}

	if cookieSameSite == http.SameSiteNoneMode && !cookieSecure {
		return nil, fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrMisconfigured)
	}

	return &AuthService{
		store:            deps.Store,
		mailer:           deps.Mailer,
		blocklist:        deps.Blocklist,
		clock:            deps.Clock,
		logger:           deps.Logger,
		metrics:          deps.Metrics,
		tokens:           tokens,
		hasher:           hasher,
		dummyHash:        dummyHash,
		appOrigin:        strings.TrimRight(appOrigin, "/"),
		sessionTTL:       sessionTTL,
		refreshThreshold: threshold,
		cookieCfg: CookieConfig{
			Domain:        cfg.CookieDomain,
			Secure:        cookieSecure,
			SameSite:      cookieSameSite,
			AccessMaxAge:  int(accessTTL.Seconds()),
			RefreshMaxAge: int(sessionTTL.Seconds()),
		},
	}, nil
}

func (s *AuthService) CookieConfig() CookieConfig {
	return s.cookieCfg
}

// CreateAccount registers a user, opens a session and sends the
// verification email. A failed email send does not fail registration.
func (s *AuthService) CreateAccount(ctx context.Context, email, plaintext, userAgent string) (_ *model.AuthResult, err error) {
	defer s.observe("create_account", &err)

	email = normalizeEmail(email)
	exists, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return nil, internal("Failed to create account", err)
	}
	if exists {
		return nil, conflict(msgEmailInUse)
	}

	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, internal("Failed to create account", err)
	}

	now := s.clock.Now()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	code, err := newCode(user.ID, model.CodeEmailVerification, now, emailVerificationTTL)
	if err != nil {
		return nil, internal("Failed to create account", err)
	}
	session := s.newSession(user.ID, userAgent, now)

	var accessToken, refreshToken string
	err = s.store.WithinTx(ctx, func(ctx context.Context, repo db.Repository) error {
		if err := repo.CreateUser(ctx, user); err != nil {
			return err
		}
		if err := repo.CreateCode(ctx, code); err != nil {
			return err
		}
		if err := repo.CreateSession(ctx, session); err != nil {
			return err
		}
		var err error
		accessToken, refreshToken, err = s.issueTokens(user.ID, session.ID)
		return err
	})
	if errors.Is(err, db.ErrConflict) {
		return nil, conflict(msgEmailInUse)
	}
	if err != nil {
		return nil, internal("Failed to create account", err)
	}

	s.sendVerificationEmail(ctx, user.Email, code)

	return &model.AuthResult{
		User:         model.ToSafeView(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Login opens a new session. Unknown email and wrong password yield the same
// error.
func (s *AuthService) Login(ctx context.Context, email, plaintext, userAgent string) (_ *model.AuthResult, err error) {
	defer s.observe("login", &err)

	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, db.ErrNotFound) {
		s.hasher.Verify(plaintext, s.dummyHash)
		return nil, unauthorized(msgInvalidCredentials)
	}
	if err != nil {
		return nil, internal("Failed to log in", err)
	}

	if !VerifyPassword(s.hasher, *user, plaintext) {
		return nil, unauthorized(msgInvalidCredentials)
	}

	session := s.newSession(user.ID, userAgent, s.clock.Now())
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, internal("Failed to log in", err)
	}

	accessToken, refreshToken, err := s.issueTokens(user.ID, session.ID)
	if err != nil {
		return nil, internal("Failed to log in", err)
	}

	return &model.AuthResult{
		User:         model.ToSafeView(*user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// RefreshAccessToken mints a new access token for a live session. When the
// session has at most refreshThreshold left it is extended and a new refresh
// token is returned as well.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (_ *model.RefreshResult, err error) {
	defer s.observe("refresh", &err)

	claims, ok := s.tokens.Verify(refreshToken, token.Refresh)
	if !ok {
		return nil, unauthorized(msgInvalidRefresh)
	}

	session, err := s.store.GetSession(ctx, claims.SessionID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, unauthorized(msgInvalidRefresh)
	}
	if err != nil {
		return nil, internal("Failed to refresh session", err)
	}

	now := s.clock.Now()
	if !session.Live(now) {
		return nil, unauthorized(msgInvalidRefresh)
	}

	result := &model.RefreshResult{}
	if session.ExpiresAt.Sub(now) <= s.refreshThreshold {
		session, err = s.store.ExtendSessionExpiry(ctx, session.ID, now.Add(s.sessionTTL))
		if errors.Is(err, db.ErrNotFound) {
			return nil, unauthorized(msgInvalidRefresh)
		}
		if err != nil {
			return nil, internal("Failed to refresh session", err)
		}
		result.NewRefreshToken, err = s.tokens.Sign(token.Claims{SessionID: session.ID}, token.Refresh)
		if err != nil {
			return nil, internal("Failed to refresh session", err)
		}
	}

	result.AccessToken, err = s.tokens.Sign(token.Claims{UserID: session.UserID, SessionID: session.ID}, token.Access)
	if err != nil {
		return nil, internal("Failed to refresh session", err)
	}
	return result, nil
}

// Logout deletes the session named by accessToken. A missing or invalid
// token is not an error.
func (s *AuthService) Logout(ctx context.Context, accessToken string) (err error) {
	defer s.observe("logout", &err)

	claims, ok := s.tokens.Verify(accessToken, token.Access)
	if !ok {
		return nil
	}

	if _, err := s.store.DeleteSession(ctx, claims.SessionID); err != nil {
		return internal("Failed to log out", err)
	}
	s.revoke(ctx, claims.SessionID)
	return nil
}

// VerifyEmail marks the owner of an email-verification code as verified and
// consumes the code.
func (s *AuthService) VerifyEmail(ctx context.Context, code string) (_ *model.SafeUser, err error) {
	defer s.observe("verify_email", &err)

	now := s.clock.Now()
	var user *model.User
	err = s.store.WithinTx(ctx, func(ctx context.Context, repo db.Repository) error {
		valid, err := repo.FindValidCode(ctx, code, model.CodeEmailVerification, now)
		if err != nil {
			return err
		}
		user, err = repo.SetUserVerified(ctx, valid.UserID, now)
		if errors.Is(err, db.ErrNotFound) {
			return internal("Failed to verify email", err)
		}
		if err != nil {
			return err
		}
		return repo.ConsumeCode(ctx, valid.ID)
	})
	if err != nil {
		return nil, flowError(err, msgInvalidCode, "Failed to verify email")
	}

	view := model.ToSafeView(*user)
	return &view, nil
}

// SendPasswordResetEmail creates a password-reset code and mails its link.
// Unlike registration, a failed send fails the flow.
func (s *AuthService) SendPasswordResetEmail(ctx context.Context, email string) (_ *model.PasswordResetResult, err error) {
	defer s.observe("send_password_reset", &err)

	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, db.ErrNotFound) {
		return nil, notFound(msgUserNotFound)
	}
	if err != nil {
		return nil, internal("Failed to send password reset email", err)
	}

	now := s.clock.Now()
	code, err := newCode(user.ID, model.CodePasswordReset, now, passwordResetTTL)
	if err != nil {
		return nil, internal("Failed to send password reset email", err)
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repo db.Repository) error {
		if err := repo.LockUser(ctx, user.ID); err != nil {
			return err
		}
		recent, err := repo.CountCodesSince(ctx, user.ID, model.CodePasswordReset, now.Add(-resetRateWindow))
		if err != nil {
			return err
		}
		if recent >= resetRateLimit {
			return tooManyRequests(msgTooManyRequests)
		}
		return repo.CreateCode(ctx, code)
	})
	if err != nil {
		return nil, flowError(err, msgUserNotFound, "Failed to send password reset email")
	}

	url := fmt.Sprintf("%s/password/reset?code=%s&exp=%d", s.appOrigin, code.ID, code.ExpiresAt.UnixMilli())
	emailID, err := s.mailer.Send(ctx, template.PasswordReset(user.Email, template.LinkData{
		URL:       url,
		ExpiresAt: code.ExpiresAt,
	}))
	if err == nil && emailID == "" {
		err = errors.New("mailer returned no delivery id")
	}
	s.observeMail("password_reset", err)
	if err != nil {
		// Drop the undelivered code so it does not hold the rate-limit window.
		if delErr := s.store.ConsumeCode(context.WithoutCancel(ctx), code.ID); delErr != nil {
			s.logger.Warn(ctx, "failed to delete undelivered reset code", "code_id", code.ID, "error", delErr)
		}
		return nil, internal("Failed to send password reset email", err)
	}

	return &model.PasswordResetResult{
		URL:       url,
		EmailID:   emailID,
		ExpiresAt: code.ExpiresAt,
	}, nil
}

// ResetPassword replaces the password of the code's owner, consumes the code
// and deletes every session of that user.
func (s *AuthService) ResetPassword(ctx context.Context, code, plaintext string) (_ *model.SafeUser, err error) {
	defer s.observe("reset_password", &err)

	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, internal("Failed to reset password", err)
	}

	now := s.clock.Now()
	var user *model.User
	var revoked []string
	err = s.store.WithinTx(ctx, func(ctx context.Context, repo db.Repository) error {
		valid, err := repo.FindValidCode(ctx, code, model.CodePasswordReset, now)
		if err != nil {
			return err
		}
		user, err = repo.UpdateUserPassword(ctx, valid.UserID, hash, now)
		if errors.Is(err, db.ErrNotFound) {
			return internal("Failed to update password", err)
		}
		if err != nil {
			return err
		}
		if err := repo.ConsumeCode(ctx, valid.ID); err != nil {
			return err
		}
		revoked, err = repo.DeleteUserSessions(ctx, valid.UserID)
		return err
	})
	if err != nil {
		return nil, flowError(err, msgInvalidCode, "Failed to reset password")
	}

	for _, id := range revoked {
		s.revoke(ctx, id)
	}

	view := model.ToSafeView(*user)
	return &view, nil
}

// Authenticate validates an access token and returns the caller identity.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (model.AuthContext, error) {
	claims, ok := s.tokens.Verify(accessToken, token.Access)
	if !ok {
		return model.AuthContext{}, unauthorized(msgInvalidAccess)
	}

	if s.blocklist != nil {
		blocked, err := s.blocklist.IsBlocked(ctx, claims.SessionID)
		if err != nil {
			s.logger.Warn(ctx, "session blocklist lookup failed", "session_id", claims.SessionID, "error", err)
		}
		if blocked {
			return model.AuthContext{}, unauthorized(msgInvalidAccess)
		}
	}

	return model.AuthContext{UserID: claims.UserID, SessionID: claims.SessionID}, nil
}

// VerifyPassword reports whether plaintext matches the user's stored hash.
func VerifyPassword(h PasswordHasher, user model.User, plaintext string) bool {
	return h.Verify(plaintext, user.PasswordHash)
}

func (s *AuthService) newSession(userID, userAgent string, now time.Time) model.Session {
	return model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
}

func (s *AuthService) issueTokens(userID, sessionID string) (string, string, error) {
	refreshToken, err := s.tokens.Sign(token.Claims{SessionID: sessionID}, token.Refresh)
	if err != nil {
		return "", "", err
	}
	accessToken, err := s.tokens.Sign(token.Claims{UserID: userID, SessionID: sessionID}, token.Access)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, to string, code model.VerificationCode) {
	url := fmt.Sprintf("%s/email/verify/%s", s.appOrigin, code.ID)
	_, err := s.mailer.Send(ctx, template.VerifyEmail(to, template.LinkData{URL: url, ExpiresAt: code.ExpiresAt}))
	s.observeMail("verify_email", err)
	if err != nil {
		s.logger.Warn(ctx, "failed to send verification email", "user_id", code.UserID, "error", err)
	}
}

// revoke blocklists a deleted session so its outstanding access tokens stop
// authenticating.
func (s *AuthService) revoke(ctx context.Context, sessionID string) {
	if s.blocklist == nil {
		return
	}
	if err := s.blocklist.Block(ctx, sessionID, s.tokens.TTL(token.Access)); err != nil {
		s.logger.Warn(ctx, "failed to blocklist session", "session_id", sessionID, "error", err)
	}
}

func (s *AuthService) observe(flow string, errp *error) {
	if s.metrics != nil {
		s.metrics.ObserveFlow(flow, resultLabel(*errp))
	}
}

func (s *AuthService) observeMail(name string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveMail(name, err)
	}
}

// flowError maps an error returned from a store transaction to a flow error.
func flowError(err error, notFoundMsg, internalMsg string) error {
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return svcErr
	case errors.Is(err, db.ErrNotFound):
		return notFound(notFoundMsg)
	default:
		return internal(internalMsg, err)
	}
}

func newCode(userID string, kind model.CodeKind, now time.Time, ttl time.Duration) (model.VerificationCode, error) {
	id, err := newCodeID()
	if err != nil {
		return model.VerificationCode{}, err
	}
	return model.VerificationCode{
		ID:        id,
		UserID:    userID,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// newCodeID returns 128 random bits as 22 URL-safe characters.
func newCodeID() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func parseSameSite(value string) (http.SameSite, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "strict":
		return http.SameSiteStrictMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unknown SameSite mode %q", value)
	}
}
