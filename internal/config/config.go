package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	StorageConfigPath string
	StorageName       string
	LogLevel          string
	LogFormat         string
	RequestTimeout    time.Duration
}

func Load() *Config {
	return &Config{
		StorageConfigPath: getEnv("STORAGE_CONFIG_PATH", "./storage.json"),
		StorageName:       getEnv("STORAGE_NAME", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		RequestTimeout:    getEnvDurationSeconds("REQUEST_TIMEOUT_SECONDS", 30),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}

	return parsed
}

func getEnvDurationSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
