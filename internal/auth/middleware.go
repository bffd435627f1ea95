//
//
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Claims represents the parsed token claims.
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
	Scopes  []string `json:"scopes"`
}

// ContextKey is used for storing claims in request context.
type ContextKey string

const (
	ClaimsKey ContextKey = "claims"
)

// Roles.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
)

var validRoles = map[string]bool{
	RoleViewer:   true,
	RoleOperator: true,
}

// ScopeRead grants access to the vehicle read API.
const ScopeRead = "read"

// TokenVerifier verifies a bearer token. *Verifier satisfies it.
type TokenVerifier interface {
	VerifyToken(token string) (*Claims, error)
}

// Middleware handles authentication and authorization. A Middleware
// without a verifier lets every request through.
type Middleware struct {
	verifier TokenVerifier
}

// NewMiddleware creates an auth middleware. v may be nil.
func NewMiddleware(v TokenVerifier) *Middleware {
	return &Middleware{verifier: v}
}

// Enabled reports whether requests are checked.
func (m *Middleware) Enabled() bool {
	return m != nil && m.verifier != nil
}

// RequireAuth rejects requests without a valid bearer token.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	if !m.Enabled() {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		claims, err := m.verifier.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RequireScope rejects requests whose claims lack any of the scopes.
// It must run inside RequireAuth.
func (m *Middleware) RequireScope(scopes ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if !m.Enabled() {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromRequest(r)
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if !HasScopes(claims, scopes...) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}
			next(w, r)
		}
	}
}

// Protect is RequireAuth followed by RequireScope(scopes...).
func (m *Middleware) Protect(next http.HandlerFunc, scopes ...string) http.HandlerFunc {
	return m.RequireAuth(m.RequireScope(scopes...)(next))
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}

// HasScopes reports whether claims carry every scope.
func HasScopes(claims *Claims, scopes ...string) bool {
	if claims == nil {
		return false
	}
	for _, s := range scopes {
		if !slices.Contains(claims.Scopes, s) {
			return false
		}
	}
	return true
}

// GetClaimsFromRequest returns the verified claims, or nil.
func GetClaimsFromRequest(r *http.Request) *Claims {
	claims, _ := r.Context().Value(ClaimsKey).(*Claims)
	return claims
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result":        "error",
		"code":          code,
		"message":       message,
		"correlationId": uuid.NewString(),
	})
}
