package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"cardapi/internal/card"
	"cardapi/internal/cardpdf"
	"cardapi/internal/http/middleware"
	"cardapi/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_CARD_NUMBER", "NOT_FOUND")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError translates card service and pipeline errors into the
// error envelope. Unclassified errors are logged and reported as 500.
func writeServiceError(c *fiber.Ctx, err error) error {
	var verr *cardpdf.ValidationError
	var serr *cardpdf.StorageError

	switch {
	case errors.As(err, &verr):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", verr.Error())
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, service.ErrNotApproved):
		return writeError(c, fiber.StatusConflict, "NOT_APPROVED", err.Error())
	case errors.Is(err, card.ErrUnknownTier),
		errors.Is(err, cardpdf.ErrUnknownTemplate),
		errors.Is(err, cardpdf.ErrUnknownLayout):
		return writeError(c, fiber.StatusUnprocessableEntity, "UNKNOWN_CARD_TYPE", err.Error())
	case errors.Is(err, card.ErrAllocationExhausted):
		return writeError(c, fiber.StatusServiceUnavailable, "NUMBER_SPACE_EXHAUSTED", "card number space exhausted, retry later")
	case errors.As(err, &serr):
		middleware.LogEntry(c).WithError(err).Error("object storage failure")
		return writeError(c, fiber.StatusBadGateway, "STORAGE_ERROR", "object storage unavailable")
	default:
		middleware.LogEntry(c).WithError(err).Error("request failed")
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", fe.Message)
		case fiber.StatusForbidden:
			return writeError(c, status, "FORBIDDEN", fe.Message)
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		case fiber.StatusTooManyRequests:
			return writeError(c, status, "RATE_LIMITED", "too many requests")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
