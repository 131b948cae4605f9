// Package config reads the model layer's environment-driven defaults.
// A .env file is auto-loaded when present; real environment variables take
// precedence.
package config

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
)

// Config holds process-wide defaults a session starts from.
type Config struct {
	// Prefix is the default tenant/namespace path prefix prepended to
	// collection paths, e.g. "tenants/acme".
	Prefix string
	// LogLevel is the default level for the zerolog-backed logger.
	LogLevel zerolog.Level
}

// Load reads configuration from environment variables.
func Load() *Config {
	level, err := zerolog.ParseLevel(getEnv("DOCMODEL_LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return &Config{
		Prefix:   getEnv("DOCMODEL_PREFIX", ""),
		LogLevel: level,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
