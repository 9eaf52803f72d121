package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mroshb/catchup/internal/streak"
)

// Store backends
const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

type Config struct {
	// Application
	AppEnv   string
	LogLevel string
	HTTPPort string

	// Storage
	StoreBackend string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Firestore
	FirestoreProjectID      string
	FirebaseCredentialsFile string

	// Streaks
	DefaultTimezone    string
	StreakFanOut       int
	StreakMaxAttempts  int
	StreakRetryBackoff time.Duration

	// Rate Limiting
	RateLimitPerSecond float64
	RateLimitBurst     int
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		StoreBackend: getEnv("STORE_BACKEND", BackendPostgres),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "catchup"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "catchup_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		FirestoreProjectID:      getEnv("FIRESTORE_PROJECT_ID", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),

		DefaultTimezone:    getEnv("DEFAULT_TIMEZONE", streak.DefaultTimezone),
		StreakFanOut:       getEnvInt("STREAK_FANOUT", 8),
		StreakMaxAttempts:  getEnvInt("STREAK_MAX_ATTEMPTS", 3),
		StreakRetryBackoff: time.Duration(getEnvInt("STREAK_RETRY_BACKOFF_MS", 25)) * time.Millisecond,

		RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 20),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required for the postgres backend")
		}
	case BackendFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of postgres, firestore, memory (got %q)", c.StoreBackend)
	}

	if !streak.ValidTimezone(c.DefaultTimezone) {
		return fmt.Errorf("DEFAULT_TIMEZONE %q is not a known IANA timezone", c.DefaultTimezone)
	}
	if c.StreakFanOut < 1 {
		return fmt.Errorf("STREAK_FANOUT must be at least 1")
	}
	if c.StreakMaxAttempts < 1 {
		return fmt.Errorf("STREAK_MAX_ATTEMPTS must be at least 1")
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.StoreBackend == BackendMemory {
		return fmt.Errorf("STORE_BACKEND=memory is not allowed in production")
	}
	if c.StoreBackend == BackendPostgres && c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.StoreBackend == BackendFirestore && c.FirebaseCredentialsFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		return fmt.Errorf("FIREBASE_CREDENTIALS_FILE or GOOGLE_APPLICATION_CREDENTIALS must be set in production")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
