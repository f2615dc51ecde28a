package app

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/seekmed/medharvest/internal/config"
)

func loggerConfig(level string) *Config {
	return &Config{
		Harvester: &config.Config{
			Logging: config.LoggingConfig{
				Level:  level,
				Format: "json",
				Output: "stderr",
			},
		},
	}
}

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "defaults to configured level",
			mutate: func(c *Config) {},
			want:   "info",
		},
		{
			name:   "explicit flag wins over verbose",
			mutate: func(c *Config) { c.LogLevel = "error"; c.Verbose = true },
			want:   "error",
		},
		{
			name:   "invalid explicit flag falls back to info",
			mutate: func(c *Config) { c.LogLevel = "loud" },
			want:   "info",
		},
		{
			name:   "verbose and quiet together pick quiet",
			mutate: func(c *Config) { c.Verbose = true; c.Quiet = true },
			want:   "warn",
		},
		{
			name:   "verbose means debug",
			mutate: func(c *Config) { c.Verbose = true },
			want:   "debug",
		},
		{
			name:   "quiet means warn",
			mutate: func(c *Config) { c.Quiet = true },
			want:   "warn",
		},
		{
			name:   "configured level used when no flags",
			mutate: func(c *Config) { c.Harvester.Logging.Level = "trace" },
			want:   "trace",
		},
		{
			name:   "invalid configured level falls back to info",
			mutate: func(c *Config) { c.Harvester.Logging.Level = "shouty" },
			want:   "info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loggerConfig("info")
			tt.mutate(cfg)
			assert.Equal(t, tt.want, determineLogLevel(cfg))
		})
	}
}

func TestNewLoggerLevel(t *testing.T) {
	cfg := loggerConfig("info")
	cfg.Verbose = true

	logger := NewLogger(cfg)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}

func TestNewLoggerQuiet(t *testing.T) {
	cfg := loggerConfig("info")
	cfg.Quiet = true

	logger := NewLogger(cfg)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}
