package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"direct-chat/internal/service"
)

const internalErrorMessage = "internal server error"

// fail maps service errors to a status code and an {"error": ...} body.
// Anything unrecognised is logged and hidden behind a generic message.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
	case errors.Is(err, service.ErrPasswordMismatch),
		errors.Is(err, service.ErrUserAlreadyExists),
		errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).WithField("op", op).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalErrorMessage})
	}
}
