package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brandsync/internal/api"
	"brandsync/internal/database"
)

var allKeys = []string{
	KeyAccessToken, KeyBaseURL, KeyCustomObjectID, KeyAssociationTypeID, KeySpreadsheetPath,
	KeyDatabaseURL, KeyLogLevel, KeyLogFormat, KeySyncSchedule, KeyBatchSize, KeyPageSize,
	KeyHTTPTimeout, KeyHTTPRetryCount, KeyChunkAttempts,
}

// isolate runs the test in an empty directory with every key unset
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range allKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return dir
}

func validConfig() *Config {
	return &Config{
		AccessToken:       "pat-na1-abc",
		CustomObjectID:    "2-123456",
		SpreadsheetPath:   "brands.xlsx",
		AssociationTypeID: 19,
		BatchSize:         100,
		PageSize:          200,
		HTTPTimeout:       30 * time.Second,
		HTTPRetryCount:    3,
		ChunkAttempts:     3,
	}
}

func TestLoad(t *testing.T) {
	t.Run("Should apply defaults", func(t *testing.T) {
		isolate(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, api.DefaultBaseURL, cfg.BaseURL)
		assert.Equal(t, 19, cfg.AssociationTypeID)
		assert.Equal(t, database.DefaultURL, cfg.DatabaseURL)
		assert.Equal(t, 100, cfg.BatchSize)
		assert.Equal(t, 200, cfg.PageSize)
		assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, 1, cfg.ChunkAttempts)
		assert.Empty(t, cfg.AccessToken)
	})

	t.Run("Should read the environment", func(t *testing.T) {
		isolate(t)
		t.Setenv(KeyAccessToken, " pat-na1-abc ")
		t.Setenv(KeyCustomObjectID, "2-123456")
		t.Setenv(KeyBatchSize, "50")
		t.Setenv(KeyHTTPTimeout, "45s")
		t.Setenv(KeySyncSchedule, "0 2 * * *")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "pat-na1-abc", cfg.AccessToken)
		assert.Equal(t, "2-123456", cfg.CustomObjectID)
		assert.Equal(t, 50, cfg.BatchSize)
		assert.Equal(t, 45*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, "0 2 * * *", cfg.SyncSchedule)
	})

	t.Run("Should layer .env.local over .env but under the environment", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
			[]byte("CUSTOM_OBJECT_ID=2-111\nSPREADSHEET_PATH=from-env.xlsx\nPAGE_SIZE=150\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"),
			[]byte("CUSTOM_OBJECT_ID=2-222\n"), 0o600))
		t.Setenv(KeyPageSize, "120")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "2-222", cfg.CustomObjectID)
		assert.Equal(t, "from-env.xlsx", cfg.SpreadsheetPath)
		assert.Equal(t, 120, cfg.PageSize)
	})
}

func TestValidate(t *testing.T) {
	t.Run("Should accept a complete configuration", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	cases := []struct {
		name  string
		field string
		edit  func(c *Config)
	}{
		{"missing token", KeyAccessToken, func(c *Config) { c.AccessToken = "" }},
		{"missing object type", KeyCustomObjectID, func(c *Config) { c.CustomObjectID = "" }},
		{"missing spreadsheet", KeySpreadsheetPath, func(c *Config) { c.SpreadsheetPath = "" }},
		{"zero association type", KeyAssociationTypeID, func(c *Config) { c.AssociationTypeID = 0 }},
		{"oversized batch", KeyBatchSize, func(c *Config) { c.BatchSize = 101 }},
		{"empty batch", KeyBatchSize, func(c *Config) { c.BatchSize = 0 }},
		{"oversized page", KeyPageSize, func(c *Config) { c.PageSize = 201 }},
		{"zero timeout", KeyHTTPTimeout, func(c *Config) { c.HTTPTimeout = 0 }},
		{"negative retries", KeyHTTPRetryCount, func(c *Config) { c.HTTPRetryCount = -1 }},
		{"no chunk attempts", KeyChunkAttempts, func(c *Config) { c.ChunkAttempts = 0 }},
	}

	for _, tc := range cases {
		t.Run("Should reject "+tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.edit(cfg)

			err := cfg.Validate()

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}
