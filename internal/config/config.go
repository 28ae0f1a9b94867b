// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service. It is built once
// at startup and read-only afterwards.
type Config struct {
	Port   string
	AppEnv string

	// BaseURL is the public origin download links are built against,
	// e.g. "https://drop.example.com".
	BaseURL string

	// Object storage (S3-compatible: MinIO locally, any S3 provider in production)
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool

	// MaxInlineSize is the largest payload accepted through the server
	// itself; bigger files must take the direct-upload path.
	MaxInlineSize int64
	// MaxFileSize is the hard cap for either upload path.
	MaxFileSize int64

	// DownloadURLTTL bounds the validity of signed download links on the
	// share page; UploadURLTTL bounds direct-upload authorizations.
	DownloadURLTTL time.Duration
	UploadURLTTL   time.Duration

	// AllowedTypes restricts declared content types when non-empty.
	// An empty list allows everything; an upload with no declared type is
	// always accepted.
	AllowedTypes []string
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	return &Config{
		Port:    getEnv("PORT", "8080"),
		AppEnv:  getEnv("APP_ENV", "development"),
		BaseURL: strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),

		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageBucket:    getEnv("STORAGE_BUCKET", "uploads"),
		StorageUseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",

		MaxInlineSize: getEnvBytes("MAX_INLINE_SIZE", "4 MiB"),
		MaxFileSize:   getEnvBytes("MAX_FILE_SIZE", "50 MiB"),

		DownloadURLTTL: getEnvDuration("DOWNLOAD_URL_TTL", 10*time.Minute),
		UploadURLTTL:   getEnvDuration("UPLOAD_URL_TTL", 15*time.Minute),

		AllowedTypes: getEnvList("ALLOWED_TYPES"),
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvBytes parses human-readable sizes such as "4 MiB" or "50MB".
func getEnvBytes(key, fallback string) int64 {
	raw := getEnv(key, fallback)
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %s", key, raw, fallback)
		n, _ = humanize.ParseBytes(fallback)
	}
	return int64(n)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

// getEnvList splits a comma-separated value, trimming blanks.
func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
