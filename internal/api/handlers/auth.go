package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/playpool/billiards/internal/accounts"
	"github.com/playpool/billiards/internal/logger"
)

const userIDKey = "user_id"

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account.
func Register(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "username and password required")
			return
		}
		u, err := d.Users.Register(c.Request.Context(), req.Username, req.Password)
		switch {
		case errors.Is(err, accounts.ErrUsernameTaken):
			respondError(c, http.StatusConflict, err.Error())
			return
		case errors.Is(err, accounts.ErrInvalidUsername), errors.Is(err, accounts.ErrWeakPassword):
			respondError(c, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			logger.Log.Errorw("[API] register failed", "error", err)
			respondError(c, http.StatusInternalServerError, "internal error")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": u.ID, "username": u.Username, "created_at": u.CreatedAt})
	}
}

// Login checks credentials and issues a session token, which is also what a
// game client presents in its ready command.
func Login(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "username and password required")
			return
		}
		u, err := d.Users.Authenticate(c.Request.Context(), req.Username, req.Password)
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, err.Error())
			return
		}
		if err != nil {
			logger.Log.Errorw("[API] login failed", "error", err)
			respondError(c, http.StatusInternalServerError, "internal error")
			return
		}
		token, err := d.Tokens.Issue(u.ID, u.Username)
		if err != nil {
			logger.Log.Errorw("[API] failed to sign token", "error", err)
			respondError(c, http.StatusInternalServerError, "internal error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": gin.H{"id": u.ID, "username": u.Username}})
	}
}

// AuthMiddleware validates the bearer token and sets user_id in the context.
func AuthMiddleware(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			respondError(c, http.StatusUnauthorized, "missing token")
			return
		}
		claims, err := d.Tokens.Verify(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			respondError(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// GetMe returns the authenticated user's profile and statistics.
func GetMe(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetInt64(userIDKey)
		u, err := d.Users.Get(c.Request.Context(), id)
		if errors.Is(err, accounts.ErrNotFound) {
			respondError(c, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, "internal error")
			return
		}
		resp := gin.H{"id": u.ID, "username": u.Username, "created_at": u.CreatedAt}
		if st, err := d.Stats.UserStats(c.Request.Context(), id); err == nil {
			resp["stats"] = st
		}
		c.JSON(http.StatusOK, resp)
	}
}

type passwordChange struct {
	Current string `json:"current_password" binding:"required"`
	New     string `json:"new_password" binding:"required"`
}

// ChangePassword replaces the authenticated user's password. The current
// password must be given again.
func ChangePassword(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req passwordChange
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "current and new password required")
			return
		}
		id := c.GetInt64(userIDKey)
		err := d.Users.ChangePassword(c.Request.Context(), id, req.Current, req.New)
		switch {
		case errors.Is(err, accounts.ErrWeakPassword):
			respondError(c, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, accounts.ErrInvalidCredentials):
			respondError(c, http.StatusForbidden, "current password is incorrect")
			return
		case errors.Is(err, accounts.ErrNotFound):
			respondError(c, http.StatusNotFound, err.Error())
			return
		case err != nil:
			logger.Log.Errorw("[API] change password failed", "user_id", id, "error", err)
			respondError(c, http.StatusInternalServerError, "internal error")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
