package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/agentstation/rostersync/pkg/logging"
)

// NewLogger creates a configured logger based on the global flags.
// Log level precedence (highest to lowest):
//  1. --log-level flag (explicit always wins)
//  2. -v/--verbose flag (shortcut for debug)
//  3. -q/--quiet flag (shortcut for warn)
//  4. LOG_LEVEL environment variable
//  5. Default (info)
func NewLogger(flags *Flags) zerolog.Logger {
	level := determineLogLevel(flags)

	cfg := &logging.Config{
		Level:      level,
		Format:     getEnvOrDefault("LOG_FORMAT", flags.LogFormat, "auto"),
		Output:     getEnvOrDefault("LOG_OUTPUT", flags.LogOutput, "stderr"),
		TimeFormat: "kitchen",
		NoColor:    flags.NoColor || os.Getenv("NO_COLOR") != "",
		AddCaller:  level == "debug" || level == "trace",
	}
	return logging.NewLoggerFromConfig(cfg)
}

// determineLogLevel determines the log level using the precedence rules.
func determineLogLevel(flags *Flags) string {
	if flags.LogLevel != "" {
		validated := validateLogLevel(flags.LogLevel)
		if validated != flags.LogLevel {
			fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using %q\n", flags.LogLevel, validated)
		}
		return validated
	}

	if flags.Verbose && flags.Quiet {
		fmt.Fprintf(os.Stderr, "Warning: both --verbose and --quiet specified, using --quiet\n")
		return "warn"
	}
	if flags.Verbose {
		return "debug"
	}
	if flags.Quiet {
		return "warn"
	}

	if env := os.Getenv("LOG_LEVEL"); env != "" {
		return validateLogLevel(env)
	}
	return "info"
}

// validateLogLevel returns level if it is known, otherwise "info".
func validateLogLevel(level string) string {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return level
	}
	return "info"
}

// getEnvOrDefault returns the explicit value if set, else the environment
// variable if set, else the fallback.
func getEnvOrDefault(key, explicit, fallback string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
