package services

import (
	"testing"

	"ride-pricing/internal/config"
	"ride-pricing/internal/database"
	"ride-pricing/internal/logger"
	"ride-pricing/internal/redis"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { _ = db.Close() })

	return &database.DB{DB: db}, mock
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	cfg := &config.RedisConfig{
		Host: "127.0.0.1",
		Port: mr.Port(),
		DB:   0,
	}

	rdb, err := redis.Connect(cfg, newTestLogger())
	require.NoError(t, err, "failed to connect redis")
	t.Cleanup(func() { _ = rdb.Close() })

	return rdb, mr
}
