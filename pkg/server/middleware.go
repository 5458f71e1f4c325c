package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"video-digest/pkg/auth"
)

const (
	contextKeyUser = "user"
	// SessionCookie is the Supabase browser session cookie.
	SessionCookie = "sb-access-token"

	rateLimitWindow = time.Minute
)

// Logger logs each request using zap.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if user := currentUser(c); user != nil {
			fields = append(fields, zap.String("user_id", user.ID))
		}
		log.Info("request", fields...)
	}
}

// extractToken reads the bearer header first, then the session cookie.
func extractToken(c *gin.Context) string {
	if token := auth.BearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// OptionalAuth sets the user if a valid token is present, but does not block the request.
func OptionalAuth(a auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a != nil {
			if token := extractToken(c); token != "" {
				if user, err := a.Authenticate(c.Request.Context(), token); err == nil {
					c.Set(contextKeyUser, user)
				}
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests that OptionalAuth did not authenticate.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "로그인이 필요합니다."})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *auth.User {
	v, ok := c.Get(contextKeyUser)
	if !ok {
		return nil
	}
	user, _ := v.(*auth.User)
	return user
}

// RateLimit allows limit requests per client IP per minute for anonymous
// callers. Authenticated callers are not limited. Redis errors let the request through.
func RateLimit(rdb *redis.Client, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 || currentUser(c) != nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		window := time.Now().Unix() / int64(rateLimitWindow/time.Second)
		key := fmt.Sprintf("videodigest:rate_limit:%s:%d", ip, window)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			rdb.PExpire(ctx, key, rateLimitWindow+time.Second)
		}

		if count > int64(limit) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "요청이 너무 많습니다. 잠시 후 다시 시도해주세요.",
			})
			return
		}
		c.Next()
	}
}
