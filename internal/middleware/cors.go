package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/playpool/billiards/internal/config"
	"github.com/playpool/billiards/internal/logger"
)

// AllowedOrigins lists the browser origins allowed outside development.
func AllowedOrigins(cfg *config.Config) []string {
	var origins []string
	if cfg.FrontendURL != "" {
		origins = append(origins, cfg.FrontendURL)
	}
	return origins
}

func isDevelopment(cfg *config.Config) bool {
	return cfg.Environment == "development" || cfg.Environment == "test"
}

// CORSMiddleware returns a CORS middleware configured for the environment
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	logger.Log.Infow("[CORS] configuring", "environment", cfg.Environment, "frontend", cfg.FrontendURL)

	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"Accept", "Cache-Control", "X-Requested-With",
		},
		ExposeHeaders: []string{
			"Content-Length", "X-Session-Count",
		},
		AllowOriginFunc: func(origin string) bool {
			return origin != "" && OriginAllowed(cfg, origin)
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour, // Cache preflight responses
	}

	if !isDevelopment(cfg) {
		logger.Log.Infow("[CORS] production allowed origins", "origins", AllowedOrigins(cfg))
	}

	return cors.New(corsConfig)
}

func isLocalOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:")
}

// OriginAllowed reports whether a websocket upgrade from origin is accepted.
// Non-browser clients send no Origin and are allowed.
func OriginAllowed(cfg *config.Config, origin string) bool {
	if origin == "" {
		return true
	}
	if isDevelopment(cfg) {
		return isLocalOrigin(origin)
	}
	for _, allowed := range AllowedOrigins(cfg) {
		if origin == allowed {
			return true
		}
	}
	return false
}

// CheckOrigin adapts OriginAllowed for a websocket upgrader.
func CheckOrigin(cfg *config.Config) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		return OriginAllowed(cfg, r.Header.Get("Origin"))
	}
}

// WebSocketCORSCheck rejects websocket upgrades from disallowed origins before
// the handler runs.
func WebSocketCORSCheck(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only check for WebSocket upgrade requests
		if !strings.Contains(strings.ToLower(c.GetHeader("Connection")), "upgrade") ||
			strings.ToLower(c.GetHeader("Upgrade")) != "websocket" {
			c.Next()
			return
		}

		if !OriginAllowed(cfg, c.GetHeader("Origin")) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "WebSocket origin not allowed"})
			return
		}

		c.Next()
	}
}
