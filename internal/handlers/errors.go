package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/dtos"
	"github.com/preetsinghmakkar/groupcall/internal/middlewares"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/services"
	"github.com/rs/zerolog"
)

// statusFor maps the service error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		notFound   *services.NotFoundError
		terminal   *services.TerminalStateError
		transition *services.InvalidTransitionError
		validation *services.ValidationError
		forbidden  *services.ForbiddenError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &terminal), errors.As(err, &transition):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger zerolog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, dtos.ErrorResponse{Error: "internal server error"})
		return
	}

	resp := dtos.ErrorResponse{Error: err.Error()}
	var validation *services.ValidationError
	if errors.As(err, &validation) {
		resp.Field = validation.Field
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dtos.ErrorResponse{Error: message})
}

func sessionIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func identity(c *gin.Context) (models.Identity, bool) {
	id, err := middlewares.GetIdentity(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, dtos.ErrorResponse{Error: "not authenticated"})
		return models.Identity{}, false
	}
	return id, true
}
