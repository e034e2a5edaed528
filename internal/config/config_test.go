package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORAGE_CONFIG_PATH", "STORAGE_NAME", "LOG_LEVEL", "LOG_FORMAT", "REQUEST_TIMEOUT_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "./storage.json", cfg.StorageConfigPath)
	assert.Empty(t, cfg.StorageName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORAGE_CONFIG_PATH", "/etc/objstore/storage.json")
	t.Setenv("STORAGE_NAME", "archive")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "5")

	cfg := Load()
	assert.Equal(t, "/etc/objstore/storage.json", cfg.StorageConfigPath)
	assert.Equal(t, "archive", cfg.StorageName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestGetEnvIntRejectsInvalid(t *testing.T) {
	t.Setenv("OBJSTORE_TEST_INT", "abc")
	assert.Equal(t, 7, getEnvInt("OBJSTORE_TEST_INT", 7))

	t.Setenv("OBJSTORE_TEST_INT", "-3")
	assert.Equal(t, 7, getEnvInt("OBJSTORE_TEST_INT", 7))

	t.Setenv("OBJSTORE_TEST_INT", "12")
	assert.Equal(t, 12, getEnvInt("OBJSTORE_TEST_INT", 7))
}
