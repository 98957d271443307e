package middlewares

import (
	"DentalClinic/database"
	"DentalClinic/utils"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// contextKey defines a custom context key type to store user details in the context.
type contextKey string

const (
	userIDKey   contextKey = "userID"
	userRoleKey contextKey = "userRole"
)

// AccessTokenHeader carries the PASETO access token of the user.
const AccessTokenHeader = "X-Access-Token"

// TokenAuthMiddleware validates the access token, checks that it was issued
// for the clinic of the request and adds user details to the request context.
func TokenAuthMiddleware(tokens *utils.TokenIssuer, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(AccessTokenHeader))
		if token == "" {
			token = c.Query("accessToken")
		}
		if token == "" {
			HttpError(c, "Missing access token", http.StatusUnauthorized, nil)
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(token, roles...)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, utils.ErrInsufficientPermissions) {
				status = http.StatusForbidden
			}
			HttpError(c, "Invalid token", status, err)
			c.Abort()
			return
		}

		tenant, err := database.TenantFromContext(c.Request.Context())
		if err != nil || claims.Tenant != tenant {
			HttpError(c, "Token was issued for another clinic", http.StatusForbidden, err)
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), userIDKey, claims.UserID)
		ctx = context.WithValue(ctx, userRoleKey, claims.Role)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// ExtractUserIDFromContext retrieves the userID from the context.
func ExtractUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return "", errors.New("user ID not found in context")
	}
	return userID, nil
}

// ExtractUserRoleFromContext retrieves the user role from the context.
func ExtractUserRoleFromContext(ctx context.Context) (string, error) {
	userRole, ok := ctx.Value(userRoleKey).(string)
	if !ok {
		return "", errors.New("user role not found in context")
	}
	return userRole, nil
}
