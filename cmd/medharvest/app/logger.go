package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/seekmed/medharvest/pkg/logging"
)

// NewLogger creates a configured logger based on the application
// configuration. Log level precedence (highest to lowest):
//  1. --log-level flag (explicit always wins)
//  2. -v/--verbose flag (shortcut for debug)
//  3. -q/--quiet flag (shortcut for warn)
//  4. Configured level (file or MEDHARVEST_LOGGING_LEVEL)
//  5. Default (info)
func NewLogger(config *Config) zerolog.Logger {
	level := determineLogLevel(config)

	logConfig := config.Harvester.Logging.ToLogging()
	logConfig.Level = level
	logConfig.AddCaller = level == "debug" || level == "trace"
	if config.NoColor {
		logConfig.NoColor = true
	}

	return logging.NewLoggerFromConfig(logConfig)
}

// determineLogLevel resolves the log level using the precedence rules.
func determineLogLevel(config *Config) string {
	// 1. Explicit --log-level always wins
	if config.LogLevel != "" {
		validated := validateLogLevel(config.LogLevel)
		if validated != config.LogLevel {
			fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using %q\n", config.LogLevel, validated)
		}
		return validated
	}

	// 2. Conflicting boolean flags: quiet is the more restrictive
	if config.Verbose && config.Quiet {
		fmt.Fprintf(os.Stderr, "Warning: both --verbose and --quiet specified, using --quiet\n")
		return "warn"
	}

	// 3. Boolean shortcuts
	if config.Verbose {
		return "debug"
	}
	if config.Quiet {
		return "warn"
	}

	// 4. Configured level, which already folds in the environment
	return validateLogLevel(config.Harvester.Logging.Level)
}

// validateLogLevel returns the level if it is known, "info" otherwise.
func validateLogLevel(level string) string {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return level
	}
	return "info"
}
