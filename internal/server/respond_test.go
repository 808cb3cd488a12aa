package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelgate/modelgate/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteError_EveryKindHasAStatusAndBody(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "validation",
			err:         domain.ErrValidation("prompt is required. ", map[string][]string{"prompt": {"is required"}}, nil),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "prompt is required. ",
		},
		{
			name:        "unauthorized",
			err:         domain.ErrUnauthorized(""),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Unauthorized",
		},
		{
			name:        "invalid api key",
			err:         domain.ErrInvalidAPIKey(),
			wantStatus:  http.StatusForbidden,
			wantMessage: "Invalid API key",
		},
		{
			name:        "no api key",
			err:         domain.ErrNoAPIKey(),
			wantStatus:  http.StatusForbidden,
			wantMessage: "No API key provided",
		},
		{
			name:        "identity provider with status",
			err:         domain.ErrIdentityProvider(http.StatusUnprocessableEntity, "invalid credentials", nil),
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "invalid credentials",
		},
		{
			name:        "identity provider without status",
			err:         domain.ErrIdentityProvider(0, "identity provider unreachable", errors.New("dial tcp: refused")),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "identity provider unreachable",
		},
		{
			name:        "storage init",
			err:         domain.ErrStorage(domain.ErrorKindStorageInit, "failed to open database", errors.New("disk full")),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "failed to open database",
		},
		{
			name:        "storage query",
			err:         domain.ErrStorage(domain.ErrorKindStorageQuery, "constraint violated", nil),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "constraint violated",
		},
		{
			name:        "storage driver",
			err:         domain.ErrStorage(domain.ErrorKindStorageDriver, "database error", errors.New("malformed page")),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "database error",
		},
		{
			name:        "storage validation",
			err:         domain.ErrStorage(domain.ErrorKindStorageValidation, "api key must not be empty", nil),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "api key must not be empty",
		},
		{
			name:        "http with status",
			err:         domain.ErrHTTP(http.StatusNotFound, "model not found", nil),
			wantStatus:  http.StatusNotFound,
			wantMessage: "model not found",
		},
		{
			name:        "backend",
			err:         domain.ErrBackend(errors.New("connection refused")),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Internal server error",
		},
		{
			name:        "wrapped classified error",
			err:         wrapErr{domain.ErrInvalidAPIKey()},
			wantStatus:  http.StatusForbidden,
			wantMessage: "Invalid API key",
		},
		{
			name:        "plain runtime error",
			err:         errors.New("something broke"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "something broke",
		},
		{
			name:        "nil",
			err:         nil,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Unknown error occurred",
		},
		{
			name:        "kind outside the known set",
			err:         &domain.Error{Kind: domain.ErrorKind("mystery"), Message: "??"},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Unknown error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), discardLogger(), rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}

			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %v\n%s", err, rec.Body.String())
			}
			if body["message"] != tt.wantMessage {
				t.Errorf("message = %v, want %q", body["message"], tt.wantMessage)
			}
		})
	}
}

// wrapErr checks that errors.As digs through wrapping before classification.
type wrapErr struct {
	inner error
}

func (w wrapErr) Error() string { return "wrapped: " + w.inner.Error() }
func (w wrapErr) Unwrap() error { return w.inner }

func TestWriteError_ValidationCarriesBothMaps(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), discardLogger(), rec,
		domain.ErrValidation("prompt is required. ", map[string][]string{"prompt": {"is required"}}, nil))

	var body struct {
		Message     string              `json:"message"`
		FieldErrors map[string][]string `json:"fieldErrors"`
		FormErrors  []string            `json:"formErrors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.FieldErrors == nil {
		t.Error("fieldErrors absent")
	}
	if got := body.FieldErrors["prompt"]; len(got) != 1 || got[0] != "is required" {
		t.Errorf("fieldErrors.prompt = %v", got)
	}
	// formErrors must be an empty array, not null.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["formErrors"]) != "[]" {
		t.Errorf("formErrors = %s, want []", raw["formErrors"])
	}
}

func TestWriteError_NonValidationOmitsFieldDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), discardLogger(), rec, domain.ErrUnauthorized(""))

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["fieldErrors"]; ok {
		t.Error("fieldErrors present on a non-validation error")
	}
}

func TestRecovererMiddleware_PanicBecomes500(t *testing.T) {
	handler := RecovererMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRecovererMiddleware_NonErrorPanicValue(t *testing.T) {
	handler := RecovererMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("not an error value")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["message"] != "Unknown error occurred" {
		t.Errorf("message = %v, want generic fallback", body["message"])
	}
}
