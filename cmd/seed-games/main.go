package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/thoward27/friend-olympics/internal/auth"
	"github.com/thoward27/friend-olympics/internal/config"
	"github.com/thoward27/friend-olympics/internal/database"
	"github.com/thoward27/friend-olympics/internal/models"
	"github.com/thoward27/friend-olympics/internal/store"
)

// Seeds the game catalog from a JSON file and creates the first admin player
// so the API has someone who can add everyone else.

type seedGame struct {
	Name              string  `json:"name"`
	Ranked            bool    `json:"ranked"`
	MinimumPlayers    int     `json:"minimum_players"`
	MaximumPlayers    *int64  `json:"maximum_players"`
	EstimatedDuration int     `json:"estimated_duration"`
	Decay             float64 `json:"decay"`
	Randomness        float64 `json:"randomness"`
	Objective         string  `json:"objective"`
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if cfg.QRSigningKey == "" {
		log.Fatal("QR_SIGNING_KEY must be set to seed players (their QR badges are minted here)")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	games := store.NewGames(db)
	players := store.NewPlayers(db)

	seedPath := os.Getenv("SEED_GAMES_FILE")
	if seedPath == "" {
		seedPath = "fixtures/games.json"
	}
	data, err := os.ReadFile(seedPath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", seedPath, err)
	}
	var seeds []seedGame
	if err := json.Unmarshal(data, &seeds); err != nil {
		log.Fatalf("Failed to parse %s: %v", seedPath, err)
	}

	created := 0
	for _, s := range seeds {
		game := &models.Game{
			ID:                uuid.New(),
			Name:              s.Name,
			Slug:              models.Slugify(s.Name),
			Ranked:            s.Ranked,
			MinimumPlayers:    s.MinimumPlayers,
			EstimatedDuration: s.EstimatedDuration,
			Decay:             s.Decay,
			Randomness:        s.Randomness,
			Objective:         s.Objective,
		}
		if s.MaximumPlayers != nil {
			game.MaximumPlayers.Int64 = *s.MaximumPlayers
			game.MaximumPlayers.Valid = true
		}
		if err := game.Validate(); err != nil {
			log.Fatalf("Invalid seed game %q: %v", s.Name, err)
		}
		if _, err := games.GetBySlug(ctx, game.Slug); err == nil {
			log.Printf("Game %q already exists, skipping", game.Name)
			continue
		}
		if err := games.Create(ctx, game); err != nil {
			log.Fatalf("Failed to create game %q: %v", game.Name, err)
		}
		created++
	}
	log.Printf("✓ Seeded %d games (%d already present)", created, len(seeds)-created)

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
		log.Printf("Using default admin username: %s", username)
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "change-me-in-production"
		log.Printf("WARNING: Using default admin password. Set ADMIN_PASSWORD env var in production!")
	}

	if _, err := players.GetByUsername(ctx, username); err == nil {
		log.Printf("Admin player %q already exists, nothing to do", username)
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}
	qrToken, err := auth.NewLoginToken(cfg.QRSigningKey, username)
	if err != nil {
		log.Fatalf("Failed to mint admin QR token: %v", err)
	}
	admin := &models.Player{
		ID:           uuid.New(),
		Username:     username,
		DisplayName:  "Admin",
		PasswordHash: hash,
		Score:        models.DefaultScore,
		QRToken:      qrToken,
		IsAdmin:      true,
	}
	if err := players.Create(ctx, admin); err != nil {
		log.Fatalf("Failed to create admin player: %v", err)
	}

	log.Printf("✓ Admin player created")
	log.Printf("  Username: %s", username)
	log.Println("\nYou can now login at /api/v1/auth/login")
}
