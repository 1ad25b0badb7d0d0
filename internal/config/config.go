package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// App
	AppEnv string
	Port   string

	// Database
	DBHost string
	DBPort string
	DBUser string
	DBPass string
	DBName string

	JWTSecret string

	// ElevenLabs
	ElevenLabsAPIKey string
	AgentID          string

	// Admin login
	AdminUsername string
	AdminPassword string

	// Sync tuning
	SyncPageSize   int
	SyncMaxPages   int
	SyncBatchSize  int
	SyncPageDelay  time.Duration
	SyncBatchDelay time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		// App
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8001"),

		// DB
		DBHost: getEnv("DB_HOST", "127.0.0.1"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBUser: getEnv("DB_USER", "postgres"),
		DBPass: getEnv("DB_PASS", "postgres"),
		DBName: getEnv("DB_NAME", "convai_mirror"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "secret123"),

		// ElevenLabs
		ElevenLabsAPIKey: getEnv("ELEVENLABS_API_KEY", ""),
		AgentID:          getEnv("ELEVENLABS_AGENT_ID", ""),

		// Admin login
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "convai-mirror-2025"),

		// Sync tuning
		SyncPageSize:   getEnvInt("SYNC_PAGE_SIZE", 0), // 0 = upstream default
		SyncMaxPages:   getEnvInt("SYNC_MAX_PAGES", 20),
		SyncBatchSize:  getEnvInt("SYNC_BATCH_SIZE", 8),
		SyncPageDelay:  getEnvDuration("SYNC_PAGE_DELAY", 100*time.Millisecond),
		SyncBatchDelay: getEnvDuration("SYNC_BATCH_DELAY", 150*time.Millisecond),
	}

	return cfg, nil
}

// getEnv returns environment variable or default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns int from env or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration from env (e.g. "150ms") or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
