package api

import (
	"github.com/gin-gonic/gin"

	"github.com/playpool/billiards/internal/api/handlers"
	"github.com/playpool/billiards/internal/logger"
	"github.com/playpool/billiards/internal/middleware"
	"github.com/playpool/billiards/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d handlers.Deps) {
	cfg := d.Config
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		logger.Log.Info("[API] no-cache headers enabled for all routes")
	}

	upgrader := ws.NewUpgrader(middleware.CheckOrigin(cfg))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Accounts
		v1.POST("/accounts", handlers.Register(d))
		v1.POST("/sessions", handlers.Login(d))
		v1.GET("/me", handlers.AuthMiddleware(d), handlers.GetMe(d))
		v1.PUT("/me/password", handlers.AuthMiddleware(d), handlers.ChangePassword(d))

		// Statistics
		v1.GET("/leaderboard", handlers.GetLeaderboard(d))
		v1.GET("/players/:id/stats", handlers.GetPlayerStats(d))

		// Matches
		matches := v1.Group("/matches")
		{
			matches.GET("", handlers.ListMatches(d))
			matches.GET("/:id", handlers.GetMatch(d))
			matches.GET("/:id/watch", middleware.WebSocketCORSCheck(cfg), handlers.WatchMatch(d, upgrader))
		}

		v1.GET("/lobbies", handlers.ListLobbies(d))

		// Game connections over websocket
		v1.GET("/play", middleware.WebSocketCORSCheck(cfg), handlers.Play(d, upgrader))
	}
}
