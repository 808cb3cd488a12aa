package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelgate/modelgate/internal/domain"
)

// errorBody is the caller-facing shape of every failure except validation.
type errorBody struct {
	Message string `json:"message"`
}

// validationBody adds the per-field detail only validation failures carry.
// Both maps are always present, even when empty, so clients can index into
// them unconditionally.
type validationBody struct {
	Message     string              `json:"message"`
	FieldErrors map[string][]string `json:"fieldErrors"`
	FormErrors  []string            `json:"formErrors"`
}

// WriteError is the error normalizer: a total function from whatever failure
// reached the boundary to one (status, body) pair. It classifies, logs and
// responds; it never retries. Stack detail and wrapped causes stay in logs.
func WriteError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	var gerr *domain.Error
	if errors.As(err, &gerr) {
		writeClassified(ctx, logger, w, gerr)
		return
	}

	if err != nil {
		// A runtime error nothing classified. Logged at error level, unlike
		// the expected kinds above.
		logger.LogAttrs(ctx, slog.LevelError, "unhandled error",
			slog.String("request_id", GetRequestID(ctx)),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Unknown error occurred"})
}

func writeClassified(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, gerr *domain.Error) {
	attrs := []slog.Attr{
		slog.String("request_id", GetRequestID(ctx)),
		slog.String("kind", string(gerr.Kind)),
	}
	if gerr.Err != nil {
		attrs = append(attrs, slog.String("cause", gerr.Err.Error()))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, gerr.Message, attrs...)

	status := gerr.HTTPStatusCode()

	switch gerr.Kind {
	case domain.ErrorKindValidation:
		writeJSON(w, status, validationBody{
			Message:     gerr.Message,
			FieldErrors: nonNilFieldErrors(gerr.FieldErrors),
			FormErrors:  nonNilFormErrors(gerr.FormErrors),
		})
	case domain.ErrorKindUnauthorized,
		domain.ErrorKindInvalidAPIKey,
		domain.ErrorKindNoAPIKey,
		domain.ErrorKindIdentityProvider,
		domain.ErrorKindStorageInit,
		domain.ErrorKindStorageQuery,
		domain.ErrorKindStorageDriver,
		domain.ErrorKindStorageValidation,
		domain.ErrorKindHTTP,
		domain.ErrorKindBackend:
		writeJSON(w, status, errorBody{Message: gerr.Message})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Unknown error occurred"})
	}
}

func nonNilFieldErrors(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}

func nonNilFormErrors(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// The status line is already out; an encode failure here can only be
	// abandoned.
	_ = json.NewEncoder(w).Encode(body)
}
