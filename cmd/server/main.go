package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/thoward27/friend-olympics/internal/api"
	"github.com/thoward27/friend-olympics/internal/auth"
	"github.com/thoward27/friend-olympics/internal/config"
	"github.com/thoward27/friend-olympics/internal/database"
	"github.com/thoward27/friend-olympics/internal/migrations"
	"github.com/thoward27/friend-olympics/internal/redis"
	"github.com/thoward27/friend-olympics/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()
	if cfg.QRSigningKey == "" {
		key, err := auth.GenerateSigningKey()
		if err != nil {
			log.Fatalf("Failed to generate QR signing key: %v", err)
		}
		cfg.QRSigningKey = key
		log.Printf("QR_SIGNING_KEY not set; generated an ephemeral key. Printed QR codes will stop working on restart.")
	}

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Start the websocket hub and the score feed subscriber
	hub := ws.NewHub()
	go hub.Run()
	ws.StartScoreSubscriber(context.Background(), rdb, hub)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, db, rdb, cfg, hub)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting Friend Olympics server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
