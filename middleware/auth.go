package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/clicker-pokemon/server/cache"
	"github.com/clicker-pokemon/server/config"
	"github.com/gin-gonic/gin"
)

const (
	TrainerIDKey = "trainer_id"
	UsernameKey  = "username"
)

// Auth validates the Bearer JWT token and checks the session cache.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		claims, err := ParseToken(tokenStr, sec.JWTSecret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// Check session still valid in cache.
		sessionKey := "session:" + tokenStr
		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		exists, err := c.Exists(cacheCtx, sessionKey)
		if err != nil || !exists {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		ctx.Set(TrainerIDKey, claims.TrainerID)
		ctx.Set(UsernameKey, claims.Username)
		ctx.Next()
	}
}

// GetTrainerID retrieves the authenticated trainer ID from the Gin context.
func GetTrainerID(c *gin.Context) int64 {
	if v, exists := c.Get(TrainerIDKey); exists {
		return v.(int64)
	}
	return 0
}

// GetUsername retrieves the authenticated trainer name from the Gin context.
func GetUsername(c *gin.Context) string {
	if v, exists := c.Get(UsernameKey); exists {
		return v.(string)
	}
	return ""
}
