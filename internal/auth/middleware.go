package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/opsdesk/callback-service/pkg/util/errorutil"
)

const claimsKey = "auth_claims"

// Middleware enforces bearer-token authentication on every route except the
// health endpoints. With SkipAuth set the guard passes everything through.
type Middleware struct {
	verifier *Verifier
	skipAuth bool
	logger   *zap.Logger
}

// NewMiddleware constructs the guard.
func NewMiddleware(verifier *Verifier, skipAuth bool, logger *zap.Logger) *Middleware {
	return &Middleware{verifier: verifier, skipAuth: skipAuth, logger: logger}
}

// Handle is registered globally ahead of all route groups.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	if m.skipAuth {
		return c.Next()
	}
	if c.Path() == "/health" || strings.HasPrefix(c.Path(), "/health/") {
		return c.Next()
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing bearer token")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("missing bearer token")
	}

	claims, err := m.verifier.Verify(c.Context(), parts[1])
	if err != nil {
		// The caller gets one uniform message; the cause stays in the log.
		m.logger.Warn("token validation failed", zap.Error(err))
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// ClaimsFromContext retrieves the verified claim set, when present.
func ClaimsFromContext(c *fiber.Ctx) (map[string]any, bool) {
	val := c.Locals(claimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(map[string]any)
	return claims, ok
}
