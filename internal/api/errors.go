package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/toastigo/storefront/internal/auth"
	"github.com/toastigo/storefront/internal/command"
	"github.com/toastigo/storefront/internal/shop"
)

// APIError represents an API-layer error with HTTP status code.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// NewAPIError creates a new API error.
func NewAPIError(code, message string, statusCode int, details interface{}) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrBadRequest marks a request body the handler itself could not decode.
var ErrBadRequest = errors.New("BAD_REQUEST")

// ToAPIError converts an error to an HTTP status code and JSON error body.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, marshalErrorResponse("PAYLOAD_TOO_LARGE",
			fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), nil)
	}

	switch {
	case errors.Is(err, shop.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, marshalErrorResponse("BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, shop.ErrNotFound):
		return http.StatusNotFound, marshalErrorResponse("NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, shop.ErrBanned):
		return http.StatusForbidden, marshalErrorResponse("BANNED", "This address is not allowed to post", nil)
	case errors.Is(err, command.ErrTimeout):
		return http.StatusGatewayTimeout, marshalErrorResponse("TIMEOUT", "Printer did not respond in time", nil)
	case errors.Is(err, command.ErrUnavailable):
		return http.StatusServiceUnavailable, marshalErrorResponse("UNAVAILABLE", "Printer link is unavailable", nil)
	case errors.Is(err, auth.ErrBadCredentials):
		return http.StatusUnauthorized, marshalErrorResponse("UNAUTHORIZED", "Incorrect password", nil)
	case errors.Is(err, auth.ErrLoginDisabled):
		return http.StatusServiceUnavailable, marshalErrorResponse("LOGIN_DISABLED", "Admin login is not configured", nil)
	}

	return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error", nil)
}

// marshalErrorResponse creates a JSON error body with correlation ID.
func marshalErrorResponse(code, message string, details interface{}) []byte {
	data, err := json.Marshal(NewErrorBody(code, message, details))
	if err != nil {
		data, _ = json.Marshal(NewErrorBody("INTERNAL", "Failed to marshal error response", nil))
	}
	return data
}
