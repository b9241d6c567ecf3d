package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ordering-quiz-service/internal/domain"
)

const ownerHeader = "X-Student-Session"

var errMissingOwner = errors.New("missing " + ownerHeader + " header")

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errMissingOwner):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidSubmission):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrTopicNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyCompleted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyTopic):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStatsUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal detail behind 5xx responses.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusServiceUnavailable:
		return "storage temporarily unavailable, please retry"
	case http.StatusInternalServerError:
		return "internal error"
	}
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.ErrSessionNotFound.Error()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: publicMessage(status, err)})
}
