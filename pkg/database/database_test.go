package database

import (
	"learnhub_backend/internal/config"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectorByDriver(t *testing.T) {
	for _, driver := range []string{"", "mysql", "postgres", "sqlite"} {
		d, err := Dialector(&config.DatabaseConfig{Driver: driver, Path: ":memory:"})
		require.NoError(t, err, driver)
		assert.NotNil(t, d)
	}

	_, err := Dialector(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestInitDBMigratesSqlite(t *testing.T) {
	db, err := InitDB(&config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "learnhub.db")}, "test", false)
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable("attempts"))
	assert.True(t, db.Migrator().HasTable("weak_topics"))
}

func TestInitRedisDisabled(t *testing.T) {
	rdb, err := InitRedis(&config.RedisConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}
