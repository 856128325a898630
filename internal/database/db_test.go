package database

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brandsync/internal/models"
)

func TestOpen(t *testing.T) {
	t.Run("Should open a sqlite file and migrate run history tables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.db")

		db, err := Open("sqlite://"+path, false, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = Close(db) })

		assert.True(t, db.Migrator().HasTable(&models.SyncRun{}))
		assert.True(t, db.Migrator().HasTable(&models.ChunkFailure{}))
		assert.True(t, db.Migrator().HasTable(&models.ScheduledJob{}))
	})

	t.Run("Should reject unsupported database URLs", func(t *testing.T) {
		_, err := Open("mysql://localhost/brandsync", false, zerolog.Nop())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database URL format")
	})

	t.Run("Should read pool settings from the environment", func(t *testing.T) {
		t.Setenv("DB_MAX_OPEN_CONNS", "9")
		t.Setenv("DB_CONN_MAX_LIFETIME", "bogus")

		assert.Equal(t, 9, getEnvInt("DB_MAX_OPEN_CONNS", 5))
		assert.Equal(t, 3, getEnvInt("DB_MAX_IDLE_UNSET", 3))
		assert.Equal(t, int64(42), int64(getEnvDuration("DB_CONN_MAX_LIFETIME", 42)))
	})
}
