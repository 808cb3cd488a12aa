// Package domain provides the core types shared across the gateway.
package domain

import "time"

// Identity is a registered user record as stored by the persistence layer.
// The gateway holds a read-only, request-scoped reference to it; it is
// attached to the request context by the auth gate and discarded when the
// response is written.
type Identity struct {
	ID    string `json:"id" db:"id"`
	Email string `json:"email" db:"email"`
	Name  string `json:"name" db:"name"`

	// APIKey is the user's long-lived key, unique across all identities.
	// Nil when the user has not been issued one. Never serialized into
	// responses.
	APIKey *string `json:"-" db:"api_key"`
}

// Session is a time-bounded, provider-issued proof of identity. The identity
// provider owns and mutates session records; the gateway only reads them.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}

// Expired reports whether the session has passed its expiry at the given
// instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SessionInfo bundles a resolved session with the identity it belongs to,
// mirroring what the identity provider returns from its get-session call.
type SessionInfo struct {
	Session Session  `json:"session"`
	User    Identity `json:"user"`
}

// GenerateRequest is the validated body of a generation call.
// Images, when present, must each be a base64 data URI with a supported
// image media type.
type GenerateRequest struct {
	Prompt string   `json:"prompt" validate:"required,min=1"`
	Model  string   `json:"model,omitempty"`
	Images []string `json:"images,omitempty" validate:"omitempty,dive,base64image"`

	// Suffix and Think pass through to the backend untouched.
	Suffix string `json:"suffix,omitempty"`
	Think  *bool  `json:"think,omitempty"`
}

// Generation is the backend's answer to a generation call, passed through to
// the caller unchanged.
type Generation struct {
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"created_at"`
	Response           string    `json:"response"`
	Done               bool      `json:"done"`
	DoneReason         string    `json:"done_reason,omitempty"`
	Context            []int     `json:"context,omitempty"`
	TotalDuration      int64     `json:"total_duration,omitempty"`
	LoadDuration       int64     `json:"load_duration,omitempty"`
	PromptEvalCount    int       `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64     `json:"prompt_eval_duration,omitempty"`
	EvalCount          int       `json:"eval_count,omitempty"`
	EvalDuration       int64     `json:"eval_duration,omitempty"`
}

// Model describes one model available on the backend.
type Model struct {
	Name       string       `json:"name"`
	Model      string       `json:"model"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

// ModelDetails carries the backend's metadata about a model.
type ModelDetails struct {
	ParentModel       string   `json:"parent_model"`
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}
