package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// HandlerFunc is an http handler that reports failures instead of writing
// them. The adapter funnels every returned error through the normalizer, so
// handlers contain no response-shaping error code of their own.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			AddError(r.Context(), err)
			WriteError(r.Context(), s.logger, w, err)
		}
	}
}

// RecovererMiddleware converts panics into normalized 500 responses. Error
// panic values keep their message; anything else becomes the generic
// unknown-error response.
func RecovererMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
				)

				err, _ := rec.(error)
				WriteError(r.Context(), logger, w, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
