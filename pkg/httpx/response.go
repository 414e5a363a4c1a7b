package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/nicktill/thermonest/pkg/errdefs"
)

// RespondJSON writes a JSON response with the given status code and data.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes an error response with the given status code and error message.
func RespondError(w http.ResponseWriter, status int, err error) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
	}
	RespondJSON(w, status, response)
}

// RespondErrorString writes an error response with the given status code and error message string.
func RespondErrorString(w http.ResponseWriter, status int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}
	RespondJSON(w, status, response)
}

// RespondErr writes err with the status its taxonomy maps to. Internal
// failures are logged and their detail is not echoed to the client.
func RespondErr(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
		if errors.Is(err, errdefs.ErrUpstreamQuery) {
			RespondError(w, status, errdefs.ErrUpstreamQuery)
			return
		}
		RespondErrorString(w, status, "internal error")
		return
	}
	RespondError(w, status, err)
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errdefs.ErrInvalidRange), errors.Is(err, errdefs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errdefs.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, errdefs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errdefs.ErrStorageFull):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
