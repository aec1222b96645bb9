package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/logger"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/service"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func fail(c echo.Context, status int, code, msg string, details any) error {
	return c.JSON(status, APIError{Code: code, Message: msg, Details: details})
}

// writeError maps a service error to its HTTP status and code.  Anything it
// does not recognise is a system error: logged, and reported opaquely.
func writeError(c echo.Context, err error) error {
	var (
		payload *payloadError
		fields  *service.FieldsError
		rl      *service.RateLimitedError
	)
	switch {
	case errors.As(err, &payload):
		return fail(c, payload.status, payload.code, payload.message, payload.details)
	case errors.As(err, &fields):
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "missing required fields", echo.Map{"fields": fields.Fields})
	case errors.As(err, &rl):
		c.Response().Header().Set("Retry-After", strconv.Itoa(middleware.RetryAfterSeconds(rl.RetryAfter.Seconds())))
		return fail(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, retry later", nil)
	case errors.Is(err, service.ErrRateLimited):
		return fail(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, retry later", nil)
	case errors.Is(err, service.ErrInvalidTime):
		return fail(c, http.StatusUnprocessableEntity, "INVALID_TIME", "invalid time, expected ISO 8601", nil)
	case errors.Is(err, service.ErrInvalidGuests):
		return fail(c, http.StatusUnprocessableEntity, "INVALID_GUESTS", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidEmail):
		return fail(c, http.StatusUnprocessableEntity, "BAD_EMAIL", "invalid email", nil)
	case errors.Is(err, service.ErrInvalidDate):
		return fail(c, http.StatusUnprocessableEntity, "INVALID_DATE", "invalid date, expected YYYY-MM-DD", nil)
	case errors.Is(err, service.ErrFullyBooked):
		return fail(c, http.StatusConflict, "FULLY_BOOKED", "time slot fully booked", nil)
	case errors.Is(err, service.ErrRaceLost):
		return fail(c, http.StatusConflict, "RACE_LOST", "just booked out, please try again", nil)
	}
	logger.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
	return fail(c, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

// ErrorHandler renders errors that escape handlers (routing, binding) in
// the APIError shape.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		_ = fail(c, he.Code, statusCode(he.Code), msg, nil)
		return
	}
	_ = writeError(c, err)
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	}
	if status >= 500 {
		return "INTERNAL"
	}
	return "ERROR"
}
