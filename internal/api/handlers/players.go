package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thoward27/friend-olympics/internal/auth"
	"github.com/thoward27/friend-olympics/internal/config"
	"github.com/thoward27/friend-olympics/internal/models"
	"github.com/thoward27/friend-olympics/internal/store"
)

// ListPlayers returns the leaderboard. ?available=true filters to players not
// currently in an open fixture (useful when starting a new one).
func ListPlayers(players *store.Players) gin.HandlerFunc {
	return func(c *gin.Context) {
		availableOnly := c.Query("available") == "true"
		list, err := players.List(c.Request.Context(), availableOnly)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"players": list})
	}
}

// GetPlayer returns one player by id.
func GetPlayer(players *store.Players) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUID(c, "id")
		if !ok {
			return
		}
		player, err := players.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, player)
	}
}

// CreatePlayer registers a new player with the default score and issues their
// QR login token. Admin only.
func CreatePlayer(players *store.Players, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username    string `json:"username"`
			DisplayName string `json:"display_name"`
			Password    string `json:"password"`
			IsAdmin     bool   `json:"is_admin"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		username := strings.ToLower(strings.TrimSpace(req.Username))
		if username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		qrToken, err := auth.NewLoginToken(cfg.QRSigningKey, username)
		if err != nil {
			respondError(c, err)
			return
		}

		player := &models.Player{
			ID:           uuid.New(),
			Username:     username,
			DisplayName:  strings.TrimSpace(req.DisplayName),
			PasswordHash: hash,
			Score:        models.DefaultScore,
			QRToken:      qrToken,
			IsAdmin:      req.IsAdmin,
		}
		if player.DisplayName == "" {
			player.DisplayName = username
		}
		if err := players.Create(c.Request.Context(), player); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, player)
	}
}

// PlayerQRCode renders the player's login QR code as a PNG.
func PlayerQRCode(players *store.Players, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUID(c, "id")
		if !ok {
			return
		}
		player, err := players.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if player.QRToken == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "player has no QR login token"})
			return
		}
		png, err := auth.QRCodePNG(auth.LoginURL(cfg.BaseURL, player.Username, player.QRToken))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	}
}
