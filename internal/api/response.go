package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// ErrorBody is the error envelope every failing API call returns.
type ErrorBody struct {
	Result        string      `json:"result"`
	Code          string      `json:"code"`
	Message       string      `json:"message"`
	Details       interface{} `json:"details,omitempty"`
	CorrelationID string      `json:"correlationId"`
}

// NewErrorBody creates an error envelope with a fresh correlation ID.
func NewErrorBody(code, message string, details interface{}) ErrorBody {
	return ErrorBody{
		Result:        "error",
		Code:          code,
		Message:       message,
		Details:       details,
		CorrelationID: uuid.NewString(),
	}
}

// WriteJSON writes v as the bare response body. Success payloads are not
// wrapped so the SPA can consume them directly.
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteOK writes {"success":true} merged with extra.
func WriteOK(w http.ResponseWriter, extra map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(w, http.StatusOK, body)
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details interface{}) {
	WriteJSON(w, statusCode, NewErrorBody(code, message, details))
}

// WriteAPIError maps err through ToAPIError and writes the result.
func WriteAPIError(w http.ResponseWriter, err error) {
	statusCode, body := ToAPIError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}
