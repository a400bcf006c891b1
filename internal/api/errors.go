package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hiroag/irhub-core/internal/auth"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeInternal     = "internal_error"
)

// oauthError is the wire shape for OAuth protocol failures.
type oauthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeOAuthError maps a token-service error onto the OAuth protocol error
// JSON the assistant platform expects.
func writeOAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidClient):
		writeJSON(w, http.StatusUnauthorized, oauthError{Error: "invalid_client"})
	case errors.Is(err, auth.ErrInvalidIdentity):
		writeJSON(w, http.StatusUnauthorized, oauthError{Error: "invalid_request", Description: "identity verification failed"})
	case errors.Is(err, auth.ErrUnsupportedGrant):
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "unsupported_grant_type"})
	case errors.Is(err, auth.ErrInvalidRedirect):
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "invalid_grant", Description: "redirect_uri not allowed"})
	case errors.Is(err, auth.ErrInvalidGrant):
		writeJSON(w, http.StatusBadRequest, oauthError{Error: "invalid_grant"})
	default:
		writeJSON(w, http.StatusInternalServerError, oauthError{Error: "server_error"})
	}
}
