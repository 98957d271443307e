package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ValidateBearerToken validates the Bearer token in the Authorization header.
func ValidateBearerToken(expectedBearerToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			HttpError(c, "Authorization header is missing", http.StatusUnauthorized, nil)
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			HttpError(c, "Invalid Authorization header format", http.StatusUnauthorized, nil)
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedBearerToken)) != 1 {
			HttpError(c, "Invalid Bearer Token", http.StatusUnauthorized, nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
