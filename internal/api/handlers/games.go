package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thoward27/friend-olympics/internal/models"
	"github.com/thoward27/friend-olympics/internal/store"
)

// ListGames returns the game catalog, alphabetically.
func ListGames(games *store.Games) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := games.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"games": list})
	}
}

// GetGame returns one game by slug.
func GetGame(games *store.Games) gin.HandlerFunc {
	return func(c *gin.Context) {
		game, err := games.GetBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, game)
	}
}

// CreateGame adds a game to the catalog. Admin only; parameter ranges are
// validated before anything is written.
func CreateGame(games *store.Games) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name              string  `json:"name"`
			Ranked            bool    `json:"ranked"`
			MinimumPlayers    int     `json:"minimum_players"`
			MaximumPlayers    *int    `json:"maximum_players"`
			EstimatedDuration int     `json:"estimated_duration"`
			Decay             float64 `json:"decay"`
			Randomness        float64 `json:"randomness"`
			Objective         string  `json:"objective"`
			Setup             string  `json:"setup"`
			Gameplay          string  `json:"gameplay"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		game := &models.Game{
			ID:                uuid.New(),
			Name:              req.Name,
			Slug:              models.Slugify(req.Name),
			Ranked:            req.Ranked,
			MinimumPlayers:    req.MinimumPlayers,
			EstimatedDuration: req.EstimatedDuration,
			Decay:             req.Decay,
			Randomness:        req.Randomness,
			Objective:         req.Objective,
			Setup:             req.Setup,
			Gameplay:          req.Gameplay,
		}
		if req.MaximumPlayers != nil {
			game.MaximumPlayers = sql.NullInt64{Int64: int64(*req.MaximumPlayers), Valid: true}
		}
		if err := game.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := games.Create(c.Request.Context(), game); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, game)
	}
}
