package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"motorent/internal/domain/identity"
)

const principalContextKey = "motorent.principal"

// TokenVerifier resolves a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(raw string) (identity.Identity, error)
}

type AuthMiddleware struct {
	Verifier TokenVerifier
	Logger   *slog.Logger
}

// Handle attaches the caller when the bearer token verifies. Anonymous requests
// continue; handlers decide whether they need a caller.
func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Verifier == nil {
		c.Next()
		return
	}
	id, err := m.Verifier.Verify(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	c.Set(principalContextKey, id)
	c.Next()
}

func currentPrincipal(c *gin.Context) (identity.Identity, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return identity.Identity{}, false
	}
	id, ok := val.(identity.Identity)
	return id, ok
}

// requireRole writes 401/403 and reports false when the caller does not qualify.
// An empty role admits any authenticated caller.
func requireRole(c *gin.Context, role identity.Role) (identity.Identity, bool) {
	id, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return identity.Identity{}, false
	}
	if role != "" && id.Role != role {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return identity.Identity{}, false
	}
	return id, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
