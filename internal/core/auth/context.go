// Package auth provides authentication context and authorization functions.
package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Types
// =============================================================================

// ScopeBuild is the scope carried by tokens issued to running builds.
// Only build tokens may publish templates.
const ScopeBuild = "build"

// Context represents the authentication context for a request.
// It is built from a verified build token and stored in the request context.
type Context struct {
	// PipelineID is the pipeline the token was issued for (pipelineId claim).
	PipelineID int64

	// Subject is the token subject, usually the build or user identifier.
	Subject string

	// Scope lists the scopes granted to the token.
	Scope []string

	// Authenticated indicates whether the request carried a valid token.
	Authenticated bool
}

// HasScope reports whether the context was granted scope.
func (c Context) HasScope(scope string) bool {
	return slices.Contains(c.Scope, scope)
}

// =============================================================================
// Header Extraction
// =============================================================================

// HeaderAuthorization carries the bearer token.
const HeaderAuthorization = "Authorization"

// HeaderGetter is an interface for getting header values.
// This allows testing without requiring an http.Request.
type HeaderGetter interface {
	Get(key string) string
}

// BearerToken returns the raw token from an "Authorization: Bearer" header,
// or "" when the header is absent or uses another scheme.
func BearerToken(headers HeaderGetter) string {
	value := headers.Get(HeaderAuthorization)
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// BearerTokenFromRequest is BearerToken for an HTTP request.
func BearerTokenFromRequest(r *http.Request) string {
	return BearerToken(r.Header)
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the auth context in the request context.
func WithContext(ctx context.Context, authCtx Context) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext retrieves the auth context from the request context.
// If no auth context is found, returns an unauthenticated context.
func FromContext(ctx context.Context) Context {
	if authCtx, ok := ctx.Value(authContextKey).(Context); ok {
		return authCtx
	}
	return Context{Authenticated: false}
}

// =============================================================================
// Helper Types for Testing
// =============================================================================

// MapHeaderGetter wraps a map to implement HeaderGetter interface.
// This is useful for testing without creating http.Request objects.
type MapHeaderGetter map[string]string

func (m MapHeaderGetter) Get(key string) string {
	return m[key]
}
