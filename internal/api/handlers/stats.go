package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/playpool/billiards/internal/logger"
	"github.com/playpool/billiards/internal/stats"
)

// GetLeaderboard returns the top players of a category.
func GetLeaderboard(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := c.DefaultQuery("category", stats.CategoryVictories)
		limit, ok := queryInt(c, "limit", stats.DefaultLeaderboardSize)
		if !ok {
			return
		}
		entries, err := d.Stats.Leaderboard(c.Request.Context(), category, limit)
		if errors.Is(err, stats.ErrUnknownCategory) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "That category does not exist.", "categories": stats.Categories()})
			return
		}
		if err != nil {
			logger.Log.Errorw("[API] leaderboard failed", "category", category, "error", err)
			respondError(c, http.StatusInternalServerError, "internal error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"category": category, "entries": entries})
	}
}

// GetPlayerStats returns a user's aggregated statistics.
func GetPlayerStats(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		st, err := d.Stats.UserStats(c.Request.Context(), id)
		if errors.Is(err, stats.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			logger.Log.Errorw("[API] user stats failed", "user_id", id, "error", err)
			respondError(c, http.StatusInternalServerError, "internal error")
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
