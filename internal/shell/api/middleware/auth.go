// Package middleware provides HTTP middleware for the template registry API.
package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/artpar/tmplregistry/internal/core/auth"
	"github.com/golang-jwt/jwt/v4"
)

// =============================================================================
// Build Token Claims
// =============================================================================

// BuildClaims are the claims carried by a build token.
type BuildClaims struct {
	PipelineID int64    `json:"pipelineId"`
	Scope      []string `json:"scope"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned when a bearer token fails verification.
var ErrInvalidToken = errors.New("invalid build token")

// SignBuildToken issues an HS256 build token for a pipeline.
func SignBuildToken(secret []byte, issuer string, pipelineID int64, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := BuildClaims{
		PipelineID: pipelineID,
		Scope:      []string{auth.ScopeBuild},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// =============================================================================
// Auth Configuration
// =============================================================================

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// Secret is the HMAC key build tokens are signed with.
	Secret []byte

	// Issuer, when set, must match the token's iss claim.
	Issuer string

	// Logger for auth middleware logging.
	Logger *slog.Logger
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware verifies bearer build tokens and stores the resulting
// auth context in the request context.
type AuthMiddleware struct {
	config AuthConfig
}

// NewAuthMiddleware creates a new auth middleware with the given config.
func NewAuthMiddleware(cfg AuthConfig) *AuthMiddleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AuthMiddleware{config: cfg}
}

// Handler returns the middleware handler function.
// Requests without a bearer token pass through unauthenticated. Requests with
// a token that does not verify are rejected with 401.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerTokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx, err := m.Verify(token)
		if err != nil {
			m.config.Logger.Warn("rejected build token",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
				"error", err,
			)
			writeJSONError(w, http.StatusUnauthorized, "invalid or expired token", "unauthorized")
			return
		}

		r = r.WithContext(auth.WithContext(r.Context(), ctx))
		next.ServeHTTP(w, r)
	})
}

// Verify parses and validates a raw build token.
func (m *AuthMiddleware) Verify(token string) (auth.Context, error) {
	claims := &BuildClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return auth.Context{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return auth.Context{}, ErrInvalidToken
	}
	if m.config.Issuer != "" && !claims.VerifyIssuer(m.config.Issuer, true) {
		return auth.Context{}, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}

	return auth.Context{
		PipelineID:    claims.PipelineID,
		Subject:       claims.Subject,
		Scope:         claims.Scope,
		Authenticated: true,
	}, nil
}

// =============================================================================
// Require Scope Middleware
// =============================================================================

// RequireScope rejects requests whose token lacks scope.
// Unauthenticated requests get 401, authenticated ones without the scope 403.
// Must be used AFTER AuthMiddleware.
func RequireScope(scope string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.FromContext(r.Context())

			if !ctx.Authenticated {
				logger.Warn("unauthenticated request to protected endpoint",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
				)
				writeJSONError(w, http.StatusUnauthorized, "authentication required", "unauthorized")
				return
			}

			if !ctx.HasScope(scope) {
				logger.Warn("token lacks required scope",
					"subject", ctx.Subject,
					"scope", scope,
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusForbidden, "insufficient scope", "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// JSON Error Response
// =============================================================================

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSONError writes an error response in the API's error format.
func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message, Code: code})
}
