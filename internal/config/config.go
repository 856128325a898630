// Package config loads brandsync settings from .env files and the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"brandsync/internal/api"
	"brandsync/internal/database"
)

// Environment keys
const (
	KeyAccessToken       = "HUBSPOT_ACCESS_TOKEN"
	KeyBaseURL           = "HUBSPOT_BASE_URL"
	KeyCustomObjectID    = "CUSTOM_OBJECT_ID"
	KeyAssociationTypeID = "ASSOCIATION_TYPE_ID"
	KeySpreadsheetPath   = "SPREADSHEET_PATH"
	KeyDatabaseURL       = "DATABASE_URL"
	KeyLogLevel          = "LOG_LEVEL"
	KeyLogFormat         = "LOG_FORMAT"
	KeySyncSchedule      = "SYNC_SCHEDULE"
	KeyBatchSize         = "BATCH_SIZE"
	KeyPageSize          = "PAGE_SIZE"
	KeyHTTPTimeout       = "HTTP_TIMEOUT"
	KeyHTTPRetryCount    = "HTTP_RETRY_COUNT"
	KeyChunkAttempts     = "CHUNK_ATTEMPTS"
)

// Limits imposed by the CRM batch and search endpoints
const (
	MaxBatchSize = 100
	MaxPageSize  = 200
)

// Config holds the settings of one brandsync process
type Config struct {
	AccessToken       string
	BaseURL           string
	CustomObjectID    string
	AssociationTypeID int
	SpreadsheetPath   string
	DatabaseURL       string

	LogLevel  string
	LogFormat string

	SyncSchedule string

	BatchSize      int
	PageSize       int
	HTTPTimeout    time.Duration
	HTTPRetryCount int
	ChunkAttempts  int
}

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads .env and .env.local (the latter wins) and then the process
// environment, which overrides both.
func Load() (*Config, error) {
	loadEnvFiles(".env", ".env.local")

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault(KeyBaseURL, api.DefaultBaseURL)
	v.SetDefault(KeyAssociationTypeID, 19)
	v.SetDefault(KeyDatabaseURL, database.DefaultURL)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")
	v.SetDefault(KeyBatchSize, MaxBatchSize)
	v.SetDefault(KeyPageSize, MaxPageSize)
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)
	v.SetDefault(KeyHTTPRetryCount, 3)
	v.SetDefault(KeyChunkAttempts, 1)

	cfg := &Config{
		AccessToken:       strings.TrimSpace(v.GetString(KeyAccessToken)),
		BaseURL:           strings.TrimSpace(v.GetString(KeyBaseURL)),
		CustomObjectID:    strings.TrimSpace(v.GetString(KeyCustomObjectID)),
		AssociationTypeID: v.GetInt(KeyAssociationTypeID),
		SpreadsheetPath:   strings.TrimSpace(v.GetString(KeySpreadsheetPath)),
		DatabaseURL:       strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFormat:         v.GetString(KeyLogFormat),
		SyncSchedule:      strings.TrimSpace(v.GetString(KeySyncSchedule)),
		BatchSize:         v.GetInt(KeyBatchSize),
		PageSize:          v.GetInt(KeyPageSize),
		HTTPTimeout:       v.GetDuration(KeyHTTPTimeout),
		HTTPRetryCount:    v.GetInt(KeyHTTPRetryCount),
		ChunkAttempts:     v.GetInt(KeyChunkAttempts),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = database.DefaultURL
	}

	return cfg, nil
}

// Validate checks the settings a reconciliation run needs
func (c *Config) Validate() error {
	if c.AccessToken == "" {
		return &ValidationError{KeyAccessToken, "required (set it or run `brandsync login`)"}
	}
	if c.CustomObjectID == "" {
		return &ValidationError{KeyCustomObjectID, "required"}
	}
	if c.SpreadsheetPath == "" {
		return &ValidationError{KeySpreadsheetPath, "required"}
	}
	if c.AssociationTypeID <= 0 {
		return &ValidationError{KeyAssociationTypeID, "must be a positive integer"}
	}
	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		return &ValidationError{KeyBatchSize, fmt.Sprintf("must be between 1 and %d", MaxBatchSize)}
	}
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return &ValidationError{KeyPageSize, fmt.Sprintf("must be between 1 and %d", MaxPageSize)}
	}
	if c.HTTPTimeout <= 0 {
		return &ValidationError{KeyHTTPTimeout, "must be a positive duration"}
	}
	if c.HTTPRetryCount < 0 {
		return &ValidationError{KeyHTTPRetryCount, "must not be negative"}
	}
	if c.ChunkAttempts < 1 {
		return &ValidationError{KeyChunkAttempts, "must be at least 1"}
	}
	return nil
}

// loadEnvFiles loads each file that exists; later files override earlier ones
// but never the process environment.
func loadEnvFiles(files ...string) {
	merged := map[string]string{}
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			continue
		}
		for k, v := range values {
			merged[k] = v
		}
	}

	for k, v := range merged {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		_ = os.Setenv(k, v)
	}
}
