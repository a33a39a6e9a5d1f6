package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/kaylam/govsignals/internal/model"
)

// ErrorResponseBody is the unified shape of every API error response.
// Category names the class of problem, Action tells the caller what to do.
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse writes an HTTP error in the unified format.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError writes the generic internal error response.
// Details stay in the logs only.
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// StatusForErrorCode maps domain error codes to HTTP status codes.
func StatusForErrorCode(code string) int {
	switch code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeSignalNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidFilter:
		return http.StatusBadRequest
	case model.ErrCodeRunInProgress:
		return http.StatusConflict
	case model.ErrCodeNoActiveSources:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}
