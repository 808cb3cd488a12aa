package domain

import (
	"context"
	"net/http"
)

// SessionResolver resolves a session from a request's headers by asking the
// identity provider. A nil SessionInfo with a nil error means no session was
// presented; errors are reserved for provider failures.
type SessionResolver interface {
	ResolveSession(ctx context.Context, headers http.Header) (*SessionInfo, error)
}

// IdentityStore is the persistence capability the credential resolver needs.
// Both lookups return a nil Identity with a nil error when no record matches.
type IdentityStore interface {
	FindByAPIKey(ctx context.Context, key string) (*Identity, error)
	FindByID(ctx context.Context, id string) (*Identity, error)
}

// Backend is the model-inference collaborator the gateway proxies to.
type Backend interface {
	Generate(ctx context.Context, req *GenerateRequest) (*Generation, error)
	ListModels(ctx context.Context) ([]Model, error)
}
