package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Middleware guards API routes with session tokens issued at login.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth validates the JWT and requires a user UUID subject.
// Sets claims and token in context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			// RFC 6750: only flag invalid_token when a token was actually sent.
			m.unauthorized(w, !errors.Is(err, ErrMissingAuthorization))
			return
		}

		if _, err := uuid.Parse(claims.Subject); err != nil {
			m.logger.Warn("Token subject is not a user id",
				zap.String("subject", claims.Subject),
				zap.String("path", r.URL.Path))
			m.unauthorized(w, true)
			return
		}

		next(w, r.WithContext(WithClaims(r.Context(), claims, token)))
	}
}

// unauthorized writes a 401 in the same envelope the API handlers use.
func (m *Middleware) unauthorized(w http.ResponseWriter, invalidToken bool) {
	challenge := `Bearer realm="finmon"`
	if invalidToken {
		challenge += `, error="invalid_token"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "unauthorized",
		"message": "Authentication required",
	}); err != nil {
		m.logger.Error("Failed to write unauthorized response", zap.Error(err))
	}
}
