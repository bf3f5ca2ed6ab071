package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// DefaultMaxAge is how long registry listings stay fresh.
const DefaultMaxAge = 30 * time.Minute

// Policy controls how a request uses the response caches.
type Policy struct {
	// MaxAge is the maximum age for cached entries
	MaxAge time.Duration

	// NoCache skips cache reads; fresh responses are still stored
	NoCache bool

	// NoStore skips cache writes
	NoStore bool

	// SessionID identifies one resolution in registry request headers
	SessionID string
}

// NewPolicy returns the default policy with a fresh session id.
func NewPolicy() *Policy {
	return &Policy{
		MaxAge:    DefaultMaxAge,
		SessionID: uuid.NewString(),
	}
}

// WithPolicy attaches p to ctx. A nil policy leaves ctx unchanged.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, p)
}

// PolicyFrom returns the policy attached to ctx, or nil.
func PolicyFrom(ctx context.Context) *Policy {
	p, _ := ctx.Value(contextKey{}).(*Policy)
	return p
}
