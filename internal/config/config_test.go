package config_test

import (
	"os"
	"testing"
	"time"

	"duochat/backend/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for _, key := range []string{
		"PORT", "SHUTDOWN_TIMEOUT", "STORAGE_DRIVER", "DATABASE_DSN", "BADGER_PATH",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "JWT_SECRET", "ENCRYPTION_KEY",
		"ENFORCE_FRIENDSHIP", "LOG_LEVEL", "LOG_FORMAT",
	} {
		// t.Setenv restores the original value on cleanup
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{"JWT_SECRET": "secret"})

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, config.StorageDriverPostgres, cfg.StorageDriver)
	assert.Contains(t, cfg.DatabaseDSN, "dbname=duochatdb")
	assert.True(t, cfg.EnforceFriendship)
	assert.False(t, cfg.UsesRedis())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	setEnv(t, nil)

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, map[string]string{
		"JWT_SECRET":         "secret",
		"PORT":               "8081",
		"STORAGE_DRIVER":     "badger",
		"BADGER_PATH":        "/tmp/duochat",
		"ENFORCE_FRIENDSHIP": "false",
		"REDIS_ADDR":         "localhost:6380",
		"SHUTDOWN_TIMEOUT":   "3s",
	})

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, config.StorageDriverBadger, cfg.StorageDriver)
	assert.Equal(t, "/tmp/duochat", cfg.BadgerPath)
	assert.False(t, cfg.EnforceFriendship)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestValidate(t *testing.T) {
	base := config.Config{
		Port:              3000,
		ShutdownTimeout:   time.Second,
		StorageDriver:     config.StorageDriverPostgres,
		JWTSecret:         "secret",
		EnforceFriendship: true,
		LogLevel:          "info",
		LogFormat:         "text",
	}
	require.NoError(t, base.Validate())

	badger := base
	badger.StorageDriver = config.StorageDriverBadger
	assert.ErrorIs(t, badger.Validate(), config.ErrFriendGraphUnavailable)

	badger.EnforceFriendship = false
	assert.NoError(t, badger.Validate())

	unknown := base
	unknown.StorageDriver = "mysql"
	assert.Error(t, unknown.Validate())

	noSecret := base
	noSecret.JWTSecret = ""
	assert.Error(t, noSecret.Validate())
}

func TestConfigureLogging(t *testing.T) {
	previous := logrus.GetLevel()
	t.Cleanup(func() {
		logrus.SetLevel(previous)
		logrus.SetFormatter(&logrus.TextFormatter{})
	})

	cfg := config.Config{LogLevel: "debug", LogFormat: "json"}
	require.NoError(t, cfg.ConfigureLogging())
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	cfg.LogLevel = "loud"
	assert.Error(t, cfg.ConfigureLogging())
}
