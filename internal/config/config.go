// internal/config/config.go
// Package config provides configuration loading and management for the media gateway.
// It handles environment variable parsing and provides default values for all settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads environment variables from .env files during package initialization.
// In development, it loads .env and .env.local files if they exist.
// In production, it relies solely on system environment variables.
// godotenv.Load does not override already-set variables, so OS env wins over .env.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the media gateway.
type Config struct {
	Env         string // Deployment environment (dev, staging, prod)
	Port        string // HTTP server port
	DatabaseDSN string // Document store connection string (PostgreSQL)
	NATSURL     string // NATS server URL for the ingestion queue

	// Object storage
	GCSBucket          string        // Bucket holding catalog objects and uploads
	GCSSignerAccessID  string        // Service account email used for URL signing
	SignedURLTTL       time.Duration // Validity window for signed URLs
	IngestionSubject   string        // Queue subject for ingestion events
	SearchURL          string        // Search backend base URL (opaque delegation)
	ChatURL            string        // Chat backend base URL (opaque delegation)

	// Shared-secret auth. Empty means no auth check at all.
	APIKey string

	// Upload limits
	MaxUploadSize    int64    // Maximum upload size in bytes
	AllowedMimeTypes []string // Accepted MIME types for uploads

	// CORS configuration
	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Default configuration values used when environment variables are not set.
const (
	defaultPort             = "8080"
	defaultEnv              = "dev"
	defaultIngestionSubject = "media.ingestion"
	defaultSignedURLTTL     = 15 * time.Minute
)

// Load reads environment variables and produces a Config suitable for wiring
// the service. It returns an error when required parameters are missing.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("MEDIA_ENV", defaultEnv),
		Port:             getEnv("MEDIA_PORT", defaultPort),
		IngestionSubject: getEnv("MEDIA_INGESTION_SUBJECT", defaultIngestionSubject),
		SignedURLTTL:     defaultSignedURLTTL,
	}

	if dsn, exists := os.LookupEnv("MEDIA_DB_DSN"); exists {
		cfg.DatabaseDSN = dsn
	}

	if natsURL, exists := os.LookupEnv("MEDIA_NATS_URL"); exists {
		cfg.NATSURL = natsURL
	}

	if bucket, exists := os.LookupEnv("MEDIA_GCS_BUCKET"); exists {
		cfg.GCSBucket = bucket
	}

	if accessID, exists := os.LookupEnv("MEDIA_GCS_SIGNER_ACCESS_ID"); exists {
		cfg.GCSSignerAccessID = accessID
	}

	if ttl, exists := os.LookupEnv("MEDIA_SIGNED_URL_TTL"); exists {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return cfg, fmt.Errorf("invalid MEDIA_SIGNED_URL_TTL: %w", err)
		}
		cfg.SignedURLTTL = d
	}

	if searchURL, exists := os.LookupEnv("MEDIA_SEARCH_URL"); exists {
		cfg.SearchURL = searchURL
	}

	if chatURL, exists := os.LookupEnv("MEDIA_CHAT_URL"); exists {
		cfg.ChatURL = chatURL
	}

	// An empty key disables the auth check entirely (development mode).
	if apiKey, exists := os.LookupEnv("MEDIA_API_KEY"); exists {
		cfg.APIKey = apiKey
	}

	if maxUploadSize, exists := os.LookupEnv("MEDIA_MAX_UPLOAD_SIZE"); exists {
		if size, err := strconv.ParseInt(maxUploadSize, 10, 64); err == nil {
			cfg.MaxUploadSize = size
		}
	} else {
		// Default to 500MB, matching the client-side limit
		cfg.MaxUploadSize = 500 * 1024 * 1024
	}

	if allowedMimeTypes, exists := os.LookupEnv("MEDIA_ALLOWED_MIME_TYPES"); exists {
		cfg.AllowedMimeTypes = splitAndTrim(allowedMimeTypes)
	} else {
		cfg.AllowedMimeTypes = []string{
			"video/mp4", "video/quicktime", "video/x-msvideo", "video/webm",
		}
	}

	if corsOrigins, exists := os.LookupEnv("MEDIA_CORS_ALLOWED_ORIGINS"); exists {
		cfg.CORSAllowedOrigins = splitAndTrim(corsOrigins)
	}

	// The bucket is required: both catalog URL resolution and the upload flow
	// sign URLs against it.
	if cfg.GCSBucket == "" {
		return cfg, fmt.Errorf("MEDIA_GCS_BUCKET is required")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable value, returning a fallback if not set or empty.
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// splitAndTrim splits a comma-separated list and trims whitespace from each item.
func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
