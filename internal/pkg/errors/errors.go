// Package errors defines the error values the HTTP layer renders.
//
// Handlers pass an *AppError to c.Error(); middleware.ErrorHandler turns it
// into {success:false, code, message[, params]}. Code below the API layer
// returns plain wrapped errors and never imports this package.
//
// Import Path: sphincs.io/sphincs/internal/pkg/errors
package errors

import (
	"fmt"
	"net/http"
)

// AppError carries a client-facing code and message alongside the status to
// answer with. Err stays server-side.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Params     map[string]any `json:"params,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithParams sets Params; an empty map leaves e unchanged.
func (e *AppError) WithParams(params map[string]any) *AppError {
	if e != nil && len(params) > 0 {
		e.Params = params
	}
	return e
}

// New returns an AppError answered with status.
func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap is New keeping cause for logs.
func Wrap(cause error, code, message string, status int) *AppError {
	e := New(code, message, status)
	e.Err = cause
	return e
}

func NotFound(code, message string) *AppError {
	return New(code, message, http.StatusNotFound)
}

func BadRequest(code, message string) *AppError {
	return New(code, message, http.StatusBadRequest)
}

func Unauthorized(code, message string) *AppError {
	return New(code, message, http.StatusUnauthorized)
}

func Forbidden(code, message string) *AppError {
	return New(code, message, http.StatusForbidden)
}
