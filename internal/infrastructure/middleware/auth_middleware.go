package middleware

import (
	"net/http"
	"strings"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const sessionContextKey = "session"

// AuthMiddleware resolves the bearer credential against the session store
// and attaches the session to the request context. It has no side effects;
// an absent, malformed or unknown credential is a 401.
func AuthMiddleware(sessions ports.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		session, err := sessions.Authenticate(c.Request.Context(), domain.SessionToken(parts[1]))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			c.Abort()
			return
		}

		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// SessionFromContext returns the session attached by AuthMiddleware.
func SessionFromContext(c *gin.Context) (*domain.Session, bool) {
	val, exists := c.Get(sessionContextKey)
	if !exists {
		return nil, false
	}
	session, ok := val.(*domain.Session)
	return session, ok
}
