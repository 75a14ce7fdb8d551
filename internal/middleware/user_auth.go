package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/logging"
)

// UserAuth accepts any valid session token that names a user and injects
// the uid into the context.
func UserAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, status, message := parseBearer(c, secret)
		if claims == nil {
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}

		uid, ok := claims["uid"].(string)
		if !ok || strings.TrimSpace(uid) == "" {
			logging.Component("auth").Warn("uid claim missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}
