package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultScore is the score every player starts with.
const DefaultScore = 1000

// Bounds for game catalog parameters.
const (
	MinPlayersBound = 2
	MaxPlayersBound = 50
	MaxDuration     = 120
)

// Player represents a person tracked by the system. Scores are only ever
// mutated by fixture settlement or an explicit admin action.
type Player struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Score        int       `db:"score" json:"score"`
	QRToken      string    `db:"qr_token" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Game is an entry in the game catalog with the parameters that drive rating
// settlement.
type Game struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	Name              string        `db:"name" json:"name"`
	Slug              string        `db:"slug" json:"slug"`
	Ranked            bool          `db:"ranked" json:"ranked"`
	MinimumPlayers    int           `db:"minimum_players" json:"minimum_players"`
	MaximumPlayers    sql.NullInt64 `db:"maximum_players" json:"maximum_players,omitempty"`
	EstimatedDuration int           `db:"estimated_duration" json:"estimated_duration"`
	Decay             float64       `db:"decay" json:"decay"`
	Randomness        float64       `db:"randomness" json:"randomness"`
	Objective         string        `db:"objective" json:"objective,omitempty"`
	Setup             string        `db:"setup" json:"setup,omitempty"`
	Gameplay          string        `db:"gameplay" json:"gameplay,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
}

// Importance is the K-factor analog: longer games move scores more, capped at
// 45 minutes so marathon games don't dominate the ladder.
func (g *Game) Importance() int {
	d := g.EstimatedDuration
	if d > 45 {
		d = 45
	}
	return d + 10
}

// CanPlay reports whether the given number of players may start this game.
func (g *Game) CanPlay(players int) bool {
	if g.MaximumPlayers.Valid {
		return g.MinimumPlayers <= players && players <= int(g.MaximumPlayers.Int64)
	}
	return g.MinimumPlayers <= players
}

// MaxRank is the highest rank a participant may hold: the participant count
// for ranked games, 2 for win/lose games.
func (g *Game) MaxRank(participants int) int {
	if !g.Ranked {
		return 2
	}
	return participants
}

// Validate checks the catalog parameter ranges.
func (g *Game) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("game name is required")
	}
	if g.MinimumPlayers < MinPlayersBound || g.MinimumPlayers > MaxPlayersBound {
		return fmt.Errorf("minimum_players must be between %d and %d", MinPlayersBound, MaxPlayersBound)
	}
	if g.MaximumPlayers.Valid {
		max := int(g.MaximumPlayers.Int64)
		if max < MinPlayersBound || max > MaxPlayersBound {
			return fmt.Errorf("maximum_players must be between %d and %d", MinPlayersBound, MaxPlayersBound)
		}
		if max < g.MinimumPlayers {
			return fmt.Errorf("maximum_players must not be below minimum_players")
		}
	}
	if g.EstimatedDuration < 1 || g.EstimatedDuration > MaxDuration {
		return fmt.Errorf("estimated_duration must be between 1 and %d minutes", MaxDuration)
	}
	if g.Decay < 0 || g.Decay > 1 {
		return fmt.Errorf("decay must be between 0 and 1")
	}
	if g.Randomness < 0 || g.Randomness > 1 {
		return fmt.Errorf("randomness must be between 0 and 1")
	}
	return nil
}

// Slugify builds a URL slug from a game name.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Fixture is one recorded play session of a game among a fixed set of
// players. Ended is null while the fixture is still open; Applied flips to
// true exactly once, when settlement has been performed.
type Fixture struct {
	ID      uuid.UUID    `db:"id" json:"id"`
	GameID  uuid.UUID    `db:"game_id" json:"game_id"`
	Started time.Time    `db:"started" json:"started"`
	Ended   sql.NullTime `db:"ended" json:"ended,omitempty"`
	Applied bool         `db:"applied" json:"applied"`
	Graph   []byte       `db:"graph" json:"graph,omitempty"`

	Ranks []Rank `db:"-" json:"ranks,omitempty"`
}

// Open reports whether the fixture is still accepting rank updates.
func (f *Fixture) Open() bool {
	return !f.Ended.Valid
}

// Rank joins a player to a fixture. Rank 0 means unranked; smaller is better;
// ties share a value. Players sharing a non-empty team never exchange points
// during settlement.
type Rank struct {
	FixtureID uuid.UUID `db:"fixture_id" json:"fixture_id"`
	PlayerID  uuid.UUID `db:"player_id" json:"player_id"`
	Rank      int       `db:"rank" json:"rank"`
	Team      string    `db:"team" json:"team,omitempty"`
	Delta     int       `db:"delta" json:"delta"`

	// Denormalized for API responses.
	Username string `db:"username" json:"username,omitempty"`
}
