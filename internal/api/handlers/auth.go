package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thoward27/friend-olympics/internal/auth"
	"github.com/thoward27/friend-olympics/internal/config"
	"github.com/thoward27/friend-olympics/internal/store"
)

// Login exchanges username+password for a session JWT.
func Login(players *store.Players, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}
		username := strings.TrimSpace(req.Username)
		if username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}

		player, err := players.GetByUsername(c.Request.Context(), username)
		if err != nil || !auth.CheckPassword(player.PasswordHash, req.Password) {
			// Same answer for unknown user and bad password.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, err := auth.IssueToken(cfg, player)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "player": player})
	}
}

// QRLogin logs a player in from a scanned QR badge. The token in the URL is a
// fernet-sealed username issued when the player was created.
func QRLogin(players *store.Players, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")
		token := c.Param("token")

		ttl := time.Duration(cfg.QRTokenTTLHours) * time.Hour
		sealed, err := auth.VerifyLoginToken(cfg.QRSigningKey, token, ttl)
		if err != nil || sealed != username {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid login token"})
			return
		}

		player, err := players.GetByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid login token"})
			return
		}

		session, err := auth.IssueToken(cfg, player)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": session, "player": player})
	}
}
