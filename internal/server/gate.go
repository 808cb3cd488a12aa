package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelgate/modelgate/internal/auth"
	"github.com/modelgate/modelgate/internal/domain"
)

// IdentityContextKey is the context key for the resolved identity.
const IdentityContextKey contextKey = "identity"

// AccessGate invokes the credential resolver and attaches the resolved
// identity to the request context. On failure the error goes straight to the
// normalizer; the handler is never reached.
func AccessGate(resolver *auth.Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolver.Resolve(r.Context(), r.Header)
			if err != nil {
				AddError(r.Context(), err)
				WriteError(r.Context(), logger, w, err)
				return
			}

			AddLogField(r.Context(), "user_id", identity.ID)
			ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the resolved identity from context, or nil outside a
// gated route.
func GetIdentity(ctx context.Context) *domain.Identity {
	if identity, ok := ctx.Value(IdentityContextKey).(*domain.Identity); ok {
		return identity
	}
	return nil
}
