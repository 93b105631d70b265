package api

import (
	"encoding/json"
	"net/http"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// mapServiceError maps service errors to HTTP status codes.
// Messages of system and database errors are replaced so internals do not leak.
func mapServiceError(err error) (int, string, string, map[string]interface{}) {
	catErr := internalerrors.Categorize(err)
	if catErr.Internal() {
		return catErr.StatusCode, ErrCodeInternalError, "An internal error occurred", nil
	}
	return catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details
}

// respondServiceError logs server-side failures and writes the mapped error
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, code, message, details := mapServiceError(err)
	respondServiceErrorWithDetails(w, r, err, statusCode, code, message, details)
}

func respondServiceErrorWithDetails(w http.ResponseWriter, r *http.Request, err error, statusCode int, code, message string, details map[string]interface{}) {
	if statusCode >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithError(err).Error("request failed")
	}
	respondError(w, statusCode, code, message, details)
}
