package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"storefront/internal/logging"
	"storefront/internal/models"
)

const adminCheckTimeout = 2 * time.Second

// Context keys set by the auth middlewares.
const (
	ClaimsKey = "claims"
	UIDKey    = "uid"
	EmailKey  = "email"
)

func parseBearer(c *gin.Context, secret string) (jwt.MapClaims, int, string) {
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if raw == "" {
		return nil, http.StatusUnauthorized, "missing token"
	}

	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, http.StatusUnauthorized, "invalid token"
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		logging.Component("auth").WithError(err).Debug("session token rejected")
		return nil, http.StatusUnauthorized, "unauthorized"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, http.StatusUnauthorized, "unauthorized"
	}
	return claims, 0, ""
}

// claimRole treats isAdmin=true as the admin role for tokens issued before
// roles were recorded.
func claimRole(claims jwt.MapClaims) string {
	if isAdmin, _ := claims["isAdmin"].(bool); isAdmin {
		return models.RoleAdmin
	}
	role, _ := claims["role"].(string)
	return role
}

func setIdentity(c *gin.Context, claims jwt.MapClaims) {
	c.Set(ClaimsKey, claims)
	if uid, ok := claims["uid"].(string); ok {
		c.Set(UIDKey, uid)
	}
	if email, ok := claims["email"].(string); ok {
		c.Set(EmailKey, email)
	}
}

// authorize checks the bearer token and role, aborting the request on
// failure.
func authorize(c *gin.Context, secret string, allowedRoles []string) bool {
	claims, status, message := parseBearer(c, secret)
	if claims == nil {
		c.AbortWithStatusJSON(status, gin.H{"error": message})
		return false
	}

	role := claimRole(claims)
	if len(allowedRoles) > 0 {
		match := false
		for _, r := range allowedRoles {
			if role == r {
				match = true
				break
			}
		}
		if !match {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return false
		}
	}

	setIdentity(c, claims)
	return true
}

func AuthGuard(secret string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authorize(c, secret, allowedRoles) {
			return
		}
		c.Next()
	}
}

// AdminDirectory reports whether a user currently holds the admin role.
type AdminDirectory interface {
	IsAdmin(ctx context.Context, uid string) (bool, error)
}

func stillAdmin(c *gin.Context, admins AdminDirectory) (bool, error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), adminCheckTimeout)
	defer cancel()
	return admins.IsAdmin(ctx, c.GetString(UIDKey))
}

// AdminAuth requires an admin session token. When admins is set the user
// record must still be admin too, so a demotion applies before the token
// expires.
func AdminAuth(secret string, admins AdminDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authorize(c, secret, []string{models.RoleAdmin}) {
			return
		}

		if admins != nil {
			ok, err := stillAdmin(c, admins)
			if err != nil {
				logging.Component("auth").WithError(err).Error("admin lookup failed")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "unable to verify admin"})
				return
			}
			if !ok {
				logging.Component("auth").WithField("uid", c.GetString(UIDKey)).Warn("admin token for a user without the admin role")
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		c.Next()
	}
}
