package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/xwhep-remote/internal/services"
	"github.com/pandeptwidyaop/xwhep-remote/internal/validation"
)

// statusFor maps a service error to the HTTP status reported to the caller.
func statusFor(err error) int {
	var (
		fieldErr    *services.InvalidFieldError
		readOnlyErr *services.ReadOnlyFieldError
		platformErr *services.InvalidPlatformError
		appErr      *services.ApplicationNotFoundError
		notFoundErr *services.NotFoundError
		stateErr    *services.InvalidStateError
		execErr     *services.WorkExecutionError
		transErr    *services.TransportError
	)

	switch {
	case errors.As(err, &fieldErr),
		errors.As(err, &readOnlyErr),
		errors.As(err, &platformErr),
		errors.Is(err, services.ErrEmptyBinary),
		errors.Is(err, validation.ErrInputEmpty),
		errors.Is(err, validation.ErrInputTooLong),
		errors.Is(err, validation.ErrInputInvalid):
		return http.StatusBadRequest
	case errors.As(err, &appErr),
		errors.As(err, &notFoundErr),
		errors.Is(err, services.ErrSubmissionNotFound):
		return http.StatusNotFound
	case errors.As(err, &stateErr):
		return http.StatusConflict
	case errors.As(err, &execErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, services.ErrDataTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &transErr),
		errors.Is(err, services.ErrUnsafeResultPath):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
