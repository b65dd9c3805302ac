package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// errorMessages are the user-facing texts for one endpoint.
type errorMessages struct {
	notFound string
	internal string
}

// fail maps err onto a status. Validation errors echo their message; internal
// errors are logged and answered generically.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msgs errorMessages) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, domain.ErrValidation):
		writeMessage(w, http.StatusBadRequest, "Invalid request.")
	case errors.Is(err, domain.ErrNotFoundOrForbidden):
		writeMessage(w, http.StatusNotFound, msgs.notFound)
	default:
		h.logger.Error(msgs.internal,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
		)
		writeMessage(w, http.StatusInternalServerError, msgs.internal)
	}
}

// decode reads a JSON body into dst; a malformed body is a validation error.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewValidationError("Invalid request body.")
	}
	return nil
}
