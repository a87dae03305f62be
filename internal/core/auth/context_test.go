package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Bearer Token Extraction Tests
// =============================================================================

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi"},
		{"extra spaces", "Bearer   abc ", "abc"},
		{"missing header", "", ""},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
		{"scheme only", "Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := MapHeaderGetter{HeaderAuthorization: tt.header}
			assert.Equal(t, tt.want, BearerToken(headers))
		})
	}
}

func TestBearerTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/templates", nil)
	r.Header.Set("Authorization", "Bearer token-123")

	assert.Equal(t, "token-123", BearerTokenFromRequest(r))
}

// =============================================================================
// Context Storage Tests
// =============================================================================

func TestWithContext_RoundTrip(t *testing.T) {
	authCtx := Context{
		PipelineID:    123,
		Subject:       "build-1",
		Scope:         []string{ScopeBuild},
		Authenticated: true,
	}

	ctx := WithContext(context.Background(), authCtx)

	assert.Equal(t, authCtx, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	authCtx := FromContext(context.Background())
	assert.False(t, authCtx.Authenticated)
	assert.Zero(t, authCtx.PipelineID)
}

func TestContext_HasScope(t *testing.T) {
	ctx := Context{Scope: []string{"user", ScopeBuild}}

	assert.True(t, ctx.HasScope(ScopeBuild))
	assert.False(t, ctx.HasScope("admin"))
	assert.False(t, Context{}.HasScope(ScopeBuild))
}
