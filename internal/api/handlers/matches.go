package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/playpool/billiards/internal/logger"
	"github.com/playpool/billiards/internal/redis"
	"github.com/playpool/billiards/internal/ws"
)

// ListMatches returns the live sessions of every server process when the
// shared index is available, and of this process otherwise.
func ListMatches(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions := d.Sessions.List()
		if d.Snapshots != nil {
			shared, err := d.Snapshots.ListSessions(c.Request.Context())
			if err != nil {
				logger.Log.Warnw("[API] shared session index failed, listing local sessions", "error", err)
			} else {
				sessions = shared
			}
		}
		c.Header("X-Session-Count", strconv.Itoa(len(sessions)))
		c.JSON(http.StatusOK, gin.H{"sessions": sessions, "waiting": d.Sessions.Waiting()})
	}
}

// ListLobbies returns the open lobbies, capped by an optional limit.
func ListLobbies(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				respondError(c, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		c.JSON(http.StatusOK, gin.H{"lobbies": d.Lobbies.Lobbies(limit)})
	}
}

// GetMatch returns the latest shared snapshot of a session.
func GetMatch(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Snapshots == nil {
			respondError(c, http.StatusServiceUnavailable, "match snapshots unavailable")
			return
		}
		snap, err := d.Snapshots.GetSnapshot(c.Request.Context(), c.Param("id"))
		if errors.Is(err, redis.ErrNotFound) {
			respondError(c, http.StatusNotFound, "match not found")
			return
		}
		if err != nil {
			logger.Log.Errorw("[API] snapshot failed", "session", c.Param("id"), "error", err)
			respondError(c, http.StatusInternalServerError, "internal error")
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// WatchMatch upgrades to a websocket that streams a session's shot and end
// events to a spectator.
func WatchMatch(d Deps, upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Snapshots == nil {
			respondError(c, http.StatusServiceUnavailable, "match events unavailable")
			return
		}
		id := c.Param("id")
		if _, err := d.Snapshots.GetSnapshot(c.Request.Context(), id); err != nil {
			respondError(c, http.StatusNotFound, "match not found")
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Log.Warnw("[API] spectator upgrade failed", "error", err)
			return
		}
		ctx := c.Request.Context()
		events := d.Snapshots.Subscribe(ctx, id)
		if err := ws.Watch(ctx, conn, events); err != nil {
			logger.Log.Debugw("[API] spectator left", "session", id, "error", err)
		}
	}
}

// Play upgrades to a websocket and runs it as a game connection.
func Play(d Deps, upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Log.Warnw("[API] play upgrade failed", "error", err)
			return
		}
		stream := ws.NewStream(conn)
		if err := d.Games.Serve(c.Request.Context(), stream); err != nil {
			logger.Log.Debugw("[API] game connection ended", "remote", stream.RemoteAddr(), "error", err)
		}
	}
}
