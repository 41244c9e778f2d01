package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/authd/internal/model"
	"github.com/kube-rca/authd/internal/service"
)

type UserHandler struct {
	svc *service.AuthService
}

func NewUserHandler(svc *service.AuthService) *UserHandler {
	return &UserHandler{svc: svc}
}

// GetUser godoc
// @Summary Get current user
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.SafeUser
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /user [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	auth, ok := GetAuthContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Not authorized"})
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), auth.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListSessions godoc
// @Summary List active sessions
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.SessionView
// @Failure 401 {object} model.ErrorResponse
// @Router /sessions [get]
func (h *UserHandler) ListSessions(c *gin.Context) {
	auth, ok := GetAuthContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Not authorized"})
		return
	}

	sessions, err := h.svc.ListSessions(c.Request.Context(), auth)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SessionListResponse(sessions))
}

// DeleteSession godoc
// @Summary Revoke a session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} model.MessageResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /sessions/{id} [delete]
func (h *UserHandler) DeleteSession(c *gin.Context) {
	auth, ok := GetAuthContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Not authorized"})
		return
	}

	if err := h.svc.DeleteSession(c.Request.Context(), auth, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Session removed"})
}
