package apiresp

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/pagination"
	"github.com/klinika/klinika/pkg/validation"
)

// Envelope is the standard JSON response shape for every endpoint.
type Envelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    interface{}      `json:"data,omitempty"`
	Meta    *pagination.Meta `json:"meta,omitempty"`
	Errors  interface{}      `json:"errors,omitempty"`
}

// OK writes a 200 envelope.
func OK(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 envelope.
func Created(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Collection writes a 200 envelope with pagination metadata.
func Collection(c echo.Context, data interface{}, meta pagination.Meta) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Message: "ok", Data: data, Meta: &meta})
}

// Unprocessable writes a 422 envelope with a single domain-guard message.
func Unprocessable(c echo.Context, message string) error {
	return c.JSON(http.StatusUnprocessableEntity, Envelope{Success: false, Message: message})
}

// ValidationFailed writes a 422 envelope with a field-keyed error map.
func ValidationFailed(c echo.Context, errs interface{}) error {
	return c.JSON(http.StatusUnprocessableEntity, Envelope{
		Success: false,
		Message: "validation failed",
		Errors:  errs,
	})
}

// Unauthorized writes a 401 envelope.
func Unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, Envelope{Success: false, Message: message})
}

// NotFound writes a 404 envelope.
func NotFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, Envelope{Success: false, Message: message})
}

// BadRequest writes a 400 envelope.
func BadRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: message})
}

// Internal writes a 500 envelope. The underlying error is never echoed to
// the client; it belongs in the request log.
func Internal(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, Envelope{Success: false, Message: "internal server error"})
}

// Error maps a service error to its response: validation failures and domain
// guards become 422, missing records 404, and anything else a logged 500.
func Error(c echo.Context, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return ValidationFailed(c, verrs)
	}
	if derr, ok := domainerr.As(err); ok {
		return Unprocessable(c, derr.Msg)
	}
	if errors.Is(err, domainerr.ErrNotFound) {
		return NotFound(c, "resource not found")
	}
	log.Error().Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Msg("request failed")
	return Internal(c)
}
