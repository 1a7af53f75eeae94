package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/services"
)

// ClaimsKey is the gin context key holding the authenticated claims
const ClaimsKey = "claims"

// AuthMiddleware provides JWT authentication middleware for Gin
type AuthMiddleware struct {
	users *services.UserService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(users *services.UserService) *AuthMiddleware {
	return &AuthMiddleware{users: users}
}

// RequireAuth ensures that a valid JWT token is present in the request
// and stores its claims in the context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := am.users.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// RequireAdmin ensures the authenticated user has the admin role
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User is not authenticated"})
			return
		}
		if !claims.Role.CanSeeAllSubscriptions() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// GetClaims returns the authenticated claims from the context, or nil.
func GetClaims(c *gin.Context) *models.UserClaims {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.UserClaims)
	if !ok {
		return nil
	}
	return claims
}
