package router

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wabiz/controllers"
)

// Authorizer blocks the admin API unless the request carries the configured key,
// either as "Authorization: Bearer <key>" or in X-Api-Key.
// An empty key keeps the admin API closed.
func Authorizer(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			controllers.RespondError(c, "api administrativa desabilitada", http.StatusServiceUnavailable)
			c.Abort()
			return
		}

		provided := strings.TrimSpace(c.GetHeader("X-Api-Key"))
		if h := c.GetHeader("Authorization"); provided == "" && strings.HasPrefix(strings.ToLower(h), "bearer ") {
			provided = strings.TrimSpace(h[len("Bearer "):])
		}
		if provided == "" {
			controllers.RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			controllers.RespondError(c, "forbidden", http.StatusForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
