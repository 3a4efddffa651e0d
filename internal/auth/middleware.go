package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const principalContextKey = "nkstorePrincipal"

// Middleware authenticates the bearer API key and injects the principal.
// Authentication runs before any handler touches the request body, and is
// re-evaluated on every request.
func Middleware(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := service.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, ErrUserBanned) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user is banned"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired credentials"})
			return
		}

		SetPrincipal(c, principal)
		c.Next()
	}
}

// SetPrincipal stores the authenticated principal on the request context.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(principalContextKey, p)
}

// CurrentPrincipal extracts the authenticated principal from the context.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	value, exists := c.Get(principalContextKey)
	if !exists {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}

// RequirePrincipal fetches the principal or writes a 401 response.
func RequirePrincipal(c *gin.Context) (Principal, bool) {
	principal, ok := CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return Principal{}, false
	}
	return principal, true
}
