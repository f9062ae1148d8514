package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"boxbook/internal/api"
)

func abortUnauthorized(c *gin.Context, msg, code string) {
	c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: msg, Code: code})
	c.Abort()
}

// AuthMiddleware validates the bearer access token and stashes the
// caller's identity in the gin context for GetUserID and RequireRole.
func AuthMiddleware(accessTokenSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header required", "UNAUTHENTICATED")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) != "Bearer" {
			abortUnauthorized(c, "Invalid authorization header format", "UNAUTHENTICATED")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			abortUnauthorized(c, "Token is empty", "UNAUTHENTICATED")
			return
		}

		claims, err := ValidateToken(tokenString, accessTokenSecret)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				abortUnauthorized(c, "Token expired", "TOKEN_EXPIRED")
			case errors.Is(err, ErrInvalidTokenType):
				abortUnauthorized(c, "Invalid token type", "UNAUTHENTICATED")
			default:
				abortUnauthorized(c, "Invalid or malformed token", "UNAUTHENTICATED")
			}
			return
		}

		if claims.TokenType != "access" {
			abortUnauthorized(c, "Access token required", "UNAUTHENTICATED")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("user_role", claims.Role)

		c.Next()
	}
}

// RequireRole gates a route group on the role claim set by
// AuthMiddleware, which must run earlier in the chain.
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("user_role")
		if !exists {
			abortUnauthorized(c, "User role not found", "UNAUTHENTICATED")
			return
		}

		roleStr, ok := role.(string)
		if !ok {
			abortUnauthorized(c, "Invalid role type", "UNAUTHENTICATED")
			return
		}

		if roleStr != requiredRole {
			c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Insufficient permissions", Code: "FORBIDDEN"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func GetUserID(c *gin.Context) (int, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}

	id, ok := userID.(int)
	if !ok {
		return 0, false
	}

	return id, true
}
