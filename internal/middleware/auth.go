package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/akshitk26/gamepulse/internal/services"

	"github.com/gin-gonic/gin"
)

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": services.CodeNotAuthenticated})
}

func JWTAuth(authService *services.AuthService) gin.HandlerFunc {
	return jwtAuth(authService, false)
}

// JWTAuthQuery also accepts the token in the "token" query parameter, for
// websocket clients that cannot set headers on the upgrade request.
func JWTAuthQuery(authService *services.AuthService) gin.HandlerFunc {
	return jwtAuth(authService, true)
}

func jwtAuth(authService *services.AuthService, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c, allowQuery)
		if token == "" {
			unauthorized(c, msg)
			return
		}

		userID, err := authService.ValidateToken(token)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context, allowQuery bool) (token, msg string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if allowQuery {
			if t := c.Query("token"); t != "" {
				return t, ""
			}
		}
		return "", "authorization header required"
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "invalid authorization header format"
	}
	return parts[1], ""
}

// RequestLogger logs one line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}
		if uid := c.GetString("user_id"); uid != "" {
			attrs = append(attrs, "user_id", uid)
		}
		switch {
		case status >= 500:
			log.Error("request", attrs...)
		case status >= 400:
			log.Warn("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}
