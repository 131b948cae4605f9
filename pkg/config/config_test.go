package config_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/docmodel/docmodel.go/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOCMODEL_PREFIX", "")
	t.Setenv("DOCMODEL_LOG_LEVEL", "")

	cfg := config.Load()
	assert.Equal(t, "", cfg.Prefix)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DOCMODEL_PREFIX", "tenants/acme")
	t.Setenv("DOCMODEL_LOG_LEVEL", "debug")

	cfg := config.Load()
	assert.Equal(t, "tenants/acme", cfg.Prefix)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
}

func TestLoadBadLevelFallsBack(t *testing.T) {
	t.Setenv("DOCMODEL_LOG_LEVEL", "shouting")
	cfg := config.Load()
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
}
