package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thoward27/friend-olympics/internal/fixtures"
	"github.com/thoward27/friend-olympics/internal/rating"
)

// respondError maps service errors onto HTTP statuses. Validation errors are
// the caller's to fix; invariant violations are ours, so they log loudly and
// come back as 500s.
func respondError(c *gin.Context, err error) {
	var inv *rating.InvariantError
	switch {
	case errors.Is(err, fixtures.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, fixtures.ErrPlayerAlreadyPlaying),
		errors.Is(err, fixtures.ErrFixtureFinished),
		errors.Is(err, fixtures.ErrFixtureNotSettled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, fixtures.ErrInvalidPlayerCount),
		errors.Is(err, fixtures.ErrPlayerNotInFixture),
		errors.Is(err, fixtures.ErrRankExceedsMax),
		errors.Is(err, rating.ErrUnrankedPlayers),
		errors.Is(err, rating.ErrTooFewPlayers):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &inv):
		log.Printf("[API] INVARIANT VIOLATION: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement invariant violated; fixture left unapplied"})
	default:
		log.Printf("[API] internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseUUID aborts with a 400 when the path parameter is not a UUID.
func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}
