package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/campushub/loyalty-be/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID uint            `json:"user_id"`
	Utorid string          `json:"utorid"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(os.Getenv("JWT_SECRET")), nil
		})

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		if claims, ok := token.Claims.(*Claims); ok {
			c.Set("user_id", claims.UserID)
			c.Set("user_utorid", claims.Utorid)
			c.Set("user_role", claims.Role)
		}

		c.Next()
	}
}

// RequireRole gates an endpoint behind a minimum role. Roles are a total
// order REGULAR < CASHIER < MANAGER < SUPERUSER; a missing or unknown role
// fails closed.
func RequireRole(min models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("user_role")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		role, ok := value.(models.UserRole)
		if !ok || !role.AtLeast(min) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CallerRole returns the authenticated caller's role, or RoleRegular's
// zero-trust fallback (empty role, rank -1) when absent.
func CallerRole(c *gin.Context) models.UserRole {
	if value, exists := c.Get("user_role"); exists {
		if role, ok := value.(models.UserRole); ok {
			return role
		}
	}
	return models.UserRole("")
}

// CallerID returns the authenticated caller's user id.
func CallerID(c *gin.Context) uint {
	if value, exists := c.Get("user_id"); exists {
		if id, ok := value.(uint); ok {
			return id
		}
	}
	return 0
}
