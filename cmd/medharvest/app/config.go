package app

import (
	"github.com/seekmed/medharvest/internal/config"
)

// Config holds the CLI-level state: global flag values plus the loaded
// harvester configuration. Flag values are filled in by cobra before
// any command runs and take precedence over file and environment
// settings.
type Config struct {
	// Global flags
	Verbose  bool
	Quiet    bool
	NoColor  bool
	Format   string
	LogLevel string

	// Config file
	ConfigFile string

	// Harvester configuration from file, environment, and defaults.
	Harvester *config.Config
}

// LoadConfig loads the harvester configuration from the default search
// locations. Flag values are applied later via UpdateFromFlags and
// ReloadHarvester once cobra has parsed them.
func LoadConfig() (*Config, error) {
	harvester, err := config.Load("")
	if err != nil {
		return nil, err
	}

	return &Config{
		Harvester: harvester,
	}, nil
}

// UpdateFromFlags copies parsed flag values into the config so they
// take precedence over file and environment settings.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// ReloadHarvester replaces the harvester configuration with the named
// file. Called when --config points somewhere other than the defaults.
func (c *Config) ReloadHarvester(path string) error {
	harvester, err := config.Load(path)
	if err != nil {
		return err
	}
	c.ConfigFile = path
	c.Harvester = harvester
	return nil
}
