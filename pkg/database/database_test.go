package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open test database")
	return db
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, HealthCheck(db))

	require.NoError(t, Close(db))
	assert.Error(t, HealthCheck(db))
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{
		Host:     "db.example.com",
		Port:     5432,
		User:     "rollback",
		Password: "secret",
		DBName:   "rollback_engine",
		SSLMode:  "require",
	}

	expected := "host=db.example.com port=5432 user=rollback password=secret dbname=rollback_engine sslmode=require"
	assert.Equal(t, expected, cfg.DSN())
}
