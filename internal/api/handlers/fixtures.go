package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thoward27/friend-olympics/internal/fixtures"
	"github.com/thoward27/friend-olympics/internal/store"
)

// CreateFixture opens a fixture for a game and a set of players.
func CreateFixture(svc *fixtures.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			GameID    uuid.UUID   `json:"game_id"`
			PlayerIDs []uuid.UUID `json:"player_ids"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		fixture, err := svc.Create(c.Request.Context(), req.GameID, req.PlayerIDs)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, fixture)
	}
}

// ListFixtures lists fixtures by lifecycle state: ?status=open (default) or
// ?status=settled.
func ListFixtures(fs *store.Fixtures) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.DefaultQuery("status", "open")
		if status != "open" && status != "settled" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be open or settled"})
			return
		}
		list, err := fs.List(c.Request.Context(), status == "open")
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"fixtures": list})
	}
}

// GetFixture returns one fixture with its ranks.
func GetFixture(fs *store.Fixtures) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUID(c, "id")
		if !ok {
			return
		}
		fixture, err := fs.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, fixture)
	}
}

// UpdateRanks sets placements and teams while the fixture is open.
func UpdateRanks(svc *fixtures.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Ranks []fixtures.RankAssignment `json:"ranks"`
		}
		if err := c.BindJSON(&req); err != nil || len(req.Ranks) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ranks required"})
			return
		}
		if err := svc.UpdateRanks(c.Request.Context(), id, req.Ranks); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": len(req.Ranks)})
	}
}

// FinishFixture ends the fixture and settles it. Safe to call twice.
func FinishFixture(svc *fixtures.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUID(c, "id")
		if !ok {
			return
		}
		fixture, err := svc.Finish(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, fixture)
	}
}

// ReapplyFixture clears and recomputes a settled fixture's deltas. Admin
// only; exists to correct rating-formula bugs retroactively.
func ReapplyFixture(svc *fixtures.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUID(c, "id")
		if !ok {
			return
		}
		fixture, err := svc.Reapply(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, fixture)
	}
}
