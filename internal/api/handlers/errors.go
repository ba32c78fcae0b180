package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"cra-notify/internal/models"
	"cra-notify/internal/services"
	"cra-notify/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps domain errors to HTTP responses. Anything unknown is a 500
// and gets logged.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrNotificationNotFound),
		errors.Is(err, models.ErrChannelNotFound),
		errors.Is(err, models.ErrMessageNotFound),
		errors.Is(err, models.ErrReactionNotFound),
		errors.Is(err, models.ErrProjectNotFound),
		errors.Is(err, models.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, models.ErrForbidden):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidNotification), errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrEmptyChannelName):
		response.Error(c, http.StatusBadRequest, response.CodeParamInvalid, err.Error())
	default:
		logger.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "")
	}
}

func bindError(c *gin.Context, err error) {
	response.Error(c, http.StatusBadRequest, response.CodeParamInvalid, err.Error())
}
