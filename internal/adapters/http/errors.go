package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/georisk/georisk/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_configured, upstream_error, malformed_response, internal_error
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: RequestIDFromCtx(c.UserContext()),
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errDomain maps an assessment error onto the API error contract.
func errDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidPoint),
		errors.Is(err, domain.ErrInvalidRadius),
		errors.Is(err, domain.ErrInvalidGeometry):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		return newError(c, fiber.StatusServiceUnavailable, "not_configured", err.Error())
	case errors.Is(err, domain.ErrMalformedResponse):
		return newError(c, fiber.StatusBadGateway, "malformed_response", err.Error())
	case errors.Is(err, domain.ErrTransport):
		return newError(c, fiber.StatusBadGateway, "upstream_error", err.Error())
	}
	return errInternal(c, err.Error())
}
