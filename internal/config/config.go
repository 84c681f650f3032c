package config

import (
	"os"
	"strconv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Where QR login links point (schema + host).
	BaseURL string

	// Security
	JWTSecret         string
	SessionTimeoutMin int

	// Fernet key (base64, 32 bytes) used to seal QR login tokens.
	QRSigningKey string

	// How long a QR login token stays valid, in hours. 0 disables expiry so
	// printed badges keep working for a whole game night and beyond.
	QRTokenTTLHours int
}

func Load() *Config {
	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/olympics?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 720),
		QRSigningKey:      getEnv("QR_SIGNING_KEY", ""),
		QRTokenTTLHours:   getEnvInt("QR_TOKEN_TTL_HOURS", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
