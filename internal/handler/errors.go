package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/authd/internal/model"
	"github.com/kube-rca/authd/internal/service"
)

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.ErrConflict:
		status = http.StatusConflict
	case service.ErrUnauthorized:
		status = http.StatusUnauthorized
	case service.ErrNotFound:
		status = http.StatusNotFound
	case service.ErrTooManyRequests:
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, model.ErrorResponse{Error: service.PublicMessage(err)})
}

func writeBadRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
}
