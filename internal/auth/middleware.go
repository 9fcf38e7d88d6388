package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const bearerChallenge = `Bearer realm="maintenance"`

// Middleware authenticates maintenance API callers with HS256 bearer tokens
// and checks their role against the route policy.
type Middleware struct {
	secret []byte
	policy Policy
	logger zerolog.Logger
}

// MiddlewareOption customizes the middleware.
type MiddlewareOption func(*Middleware)

// WithMiddlewareLogger logs rejected requests.
func WithMiddlewareLogger(logger zerolog.Logger) MiddlewareOption {
	return func(m *Middleware) {
		m.logger = logger
	}
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{secret: secret, policy: policy, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wrap guards next. Exempt routes and routes without a required role pass
// through untouched; everything else needs a valid token whose role ranks
// at or above the route's.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, guarded := m.policy.RequiredRole(r)
		if !guarded {
			next.ServeHTTP(w, r)
			return
		}

		logger := m.logger.With().Str("method", r.Method).Str("path", r.URL.Path).Logger()
		claims, err := ParseJWT(bearerToken(r), m.secret)
		if err != nil {
			logger.Debug().Err(err).Msg("maintenance api: token rejected")
			w.Header().Set("WWW-Authenticate", bearerChallenge)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			logger.Info().
				Str("subject", claims.Subject).
				Str("role", claims.Role).
				Str("required", string(required)).
				Msg("maintenance api: role too low")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), claims.TenantID, role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken returns the token from "Authorization: Bearer <token>", or "".
func bearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
