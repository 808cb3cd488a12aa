// Package auth decides, per request, which credential grants access.
//
// The resolver implements API-key-first with session fallback: an x-api-key
// header, when present, is authoritative and must match a stored key exactly;
// only in its absence is a browser session consulted. Either credential
// admits the caller to every protected route.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/modelgate/modelgate/internal/domain"
)

// APIKeyHeader is the header carrying the long-lived API key credential.
const APIKeyHeader = "x-api-key"

// Resolver turns a request's headers into an Identity, or fails with one of
// the auth error kinds.
type Resolver struct {
	sessions domain.SessionResolver
	store    domain.IdentityStore
}

// NewResolver creates a Resolver over the given collaborators. Both are
// capability interfaces so tests can substitute fakes.
func NewResolver(sessions domain.SessionResolver, store domain.IdentityStore) *Resolver {
	return &Resolver{sessions: sessions, store: store}
}

// Resolve produces the caller's identity. The result is a pure function of
// the presented headers and the persisted state at lookup time; concurrent
// key rotation may let two in-flight requests observe different snapshots,
// but no single request ever mixes them.
func (r *Resolver) Resolve(ctx context.Context, headers http.Header) (*domain.Identity, error) {
	key := headers.Get(APIKeyHeader)
	if key == "" {
		return r.resolveSession(ctx, headers)
	}
	return r.resolveAPIKey(ctx, key)
}

func (r *Resolver) resolveSession(ctx context.Context, headers http.Header) (*domain.Identity, error) {
	info, err := r.sessions.ResolveSession(ctx, headers)
	if err != nil {
		return nil, err
	}
	if info == nil || info.Session.Expired(time.Now()) {
		return nil, domain.ErrUnauthorized("No valid session or API key provided")
	}
	identity := info.User
	return &identity, nil
}

func (r *Resolver) resolveAPIKey(ctx context.Context, key string) (*domain.Identity, error) {
	identity, err := r.store.FindByAPIKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if identity == nil || identity.APIKey == nil {
		return nil, domain.ErrInvalidAPIKey()
	}
	// Full-string equality, in constant time. The unique index on the stored
	// key guarantees at most one identity matched the lookup.
	if subtle.ConstantTimeCompare([]byte(key), []byte(*identity.APIKey)) != 1 {
		return nil, domain.ErrInvalidAPIKey()
	}
	return identity, nil
}
