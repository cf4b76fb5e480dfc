// internal/errors/errors.go
// Package errors provides standardized error handling for the media gateway.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code for the media gateway.
type ErrorCode string

const (
	// Input validation errors
	MEDIA_VALIDATION  ErrorCode = "MEDIA_VALIDATION"  // Missing or malformed request fields
	MEDIA_BAD_REQUEST ErrorCode = "MEDIA_BAD_REQUEST" // Method not allowed, bad route use

	// Authorization errors
	MEDIA_UNAUTHORIZED ErrorCode = "MEDIA_UNAUTHORIZED" // Missing or invalid API key

	// Resource errors
	MEDIA_NOT_FOUND ErrorCode = "MEDIA_NOT_FOUND" // Empty catalog or missing record

	// Downstream/service errors
	MEDIA_UPSTREAM ErrorCode = "MEDIA_UPSTREAM" // Search or chat backend failure
	MEDIA_INTERNAL ErrorCode = "MEDIA_INTERNAL" // Store, signer, or publisher failure
)

// Error represents a standardized error response.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId"`
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string, correlationID string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// NewWithDetails creates a new Error with the specified code, message, and details.
func NewWithDetails(code ErrorCode, message string, correlationID string, details interface{}) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		Details:       details,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case MEDIA_VALIDATION, MEDIA_BAD_REQUEST:
		return http.StatusBadRequest
	case MEDIA_UNAUTHORIZED:
		return http.StatusUnauthorized
	case MEDIA_NOT_FOUND:
		return http.StatusNotFound
	case MEDIA_UPSTREAM:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
