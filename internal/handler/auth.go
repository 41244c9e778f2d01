package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/authd/internal/model"
	"github.com/kube-rca/authd/internal/service"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
	accessCookiePath  = "/"
	refreshCookiePath = "/auth/refresh"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register godoc
// @Summary Register a new user
// @Description Creates the account, opens a session and sends a verification email.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "Email and password"
// @Success 201 {object} model.RegisterResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	res, err := h.svc.CreateAccount(c.Request.Context(), req.Email, req.Password, c.Request.UserAgent())
	if err != nil {
		writeError(c, err)
		return
	}

	h.setAuthCookies(c, res.AccessToken, res.RefreshToken)
	c.JSON(http.StatusCreated, model.RegisterResponse{User: res.User})
}

// Login godoc
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Email and password"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, c.Request.UserAgent())
	if err != nil {
		writeError(c, err)
		return
	}

	h.setAuthCookies(c, res.AccessToken, res.RefreshToken)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Login successful"})
}

// Refresh godoc
// @Summary Refresh access token
// @Description Uses the refreshToken cookie. A new refresh token is set only when the session was extended.
// @Tags auth
// @Produce json
// @Success 200 {object} model.MessageResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/refresh [get]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(refreshCookieName)
	if refreshToken == "" {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Missing refresh token"})
		return
	}

	res, err := h.svc.RefreshAccessToken(c.Request.Context(), refreshToken)
	if err != nil {
		writeError(c, err)
		return
	}

	if res.NewRefreshToken != "" {
		h.setRefreshCookie(c, res.NewRefreshToken)
	}
	h.setAccessCookie(c, res.AccessToken)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Access token refreshed"})
}

// Logout godoc
// @Summary Logout
// @Description Deletes the current session (if the access token is valid) and clears cookies.
// @Tags auth
// @Produce json
// @Success 200 {object} model.MessageResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/logout [get]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), accessTokenFrom(c)); err != nil {
		writeError(c, err)
		return
	}

	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Logout successful"})
}

// VerifyEmail godoc
// @Summary Verify email address
// @Tags auth
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/email/verify/{code} [get]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var params model.VerifyEmailParams
	if err := c.ShouldBindUri(&params); err != nil {
		writeBadRequest(c, err)
		return
	}

	if _, err := h.svc.VerifyEmail(c.Request.Context(), params.Code); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.MessageResponse{Message: "Email was successfully verified"})
}

// ForgotPassword godoc
// @Summary Send password reset email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ForgotPasswordRequest true "Account email"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/password/forgot [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req model.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	if _, err := h.svc.SendPasswordResetEmail(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.MessageResponse{Message: "Password reset email sent"})
}

// ResetPassword godoc
// @Summary Reset password
// @Description Sets a new password, logs out every session and clears cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ResetPasswordRequest true "New password and reset code"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	if _, err := h.svc.ResetPassword(c.Request.Context(), req.VerificationCode, req.Password); err != nil {
		writeError(c, err)
		return
	}

	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Password reset successful"})
}

func (h *AuthHandler) setAuthCookies(c *gin.Context, accessToken, refreshToken string) {
	h.setAccessCookie(c, accessToken)
	h.setRefreshCookie(c, refreshToken)
}

func (h *AuthHandler) setAccessCookie(c *gin.Context, token string) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(accessCookieName, token, cfg.AccessMaxAge, accessCookiePath, cfg.Domain, cfg.Secure, true)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(refreshCookieName, token, cfg.RefreshMaxAge, refreshCookiePath, cfg.Domain, cfg.Secure, true)
}

func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(accessCookieName, "", -1, accessCookiePath, cfg.Domain, cfg.Secure, true)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, cfg.Domain, cfg.Secure, true)
}
