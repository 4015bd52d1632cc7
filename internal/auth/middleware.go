package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const apiKeyHeader = "X-API-Key"
const bearerPrefix = "Bearer "

// AccessCookie is the HTTP-only cookie carrying the access token for
// browser clients. The bearer header wins when both are present.
const AccessCookie = "access_token"

// APIKeyResolver maps an API key to an identity. Implemented by the user
// manager; failures must be indistinguishable from unknown keys.
type APIKeyResolver interface {
	ResolveAPIKey(key string) (userID, role string, err error)
}

// RequireIdentity verifies a bearer token, the access cookie, or an API key
// and injects identity into request context. It does not perform RBAC
// checks; those belong to internal/rbac.
func RequireIdentity(m *Manager, keys APIKeyResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := strings.TrimSpace(c.GetHeader(apiKeyHeader)); key != "" && keys != nil {
			userID, role, err := keys.ResolveAPIKey(key)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
				return
			}
			inject(c, userID, role)
			return
		}

		tok := bearerToken(c)
		if tok == "" {
			var err error
			tok, err = c.Cookie(AccessCookie)
			if err != nil || tok == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
				return
			}
		}

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		inject(c, claims.UserID, claims.Role)
	}
}

func bearerToken(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(raw, bearerPrefix)
}

func inject(c *gin.Context, userID, role string) {
	ctx := WithIdentity(c.Request.Context(), userID, role)
	c.Request = c.Request.WithContext(ctx)

	// Also store on gin context for handler convenience.
	c.Set("user_id", userID)
	c.Set("role", role)

	c.Next()
}
