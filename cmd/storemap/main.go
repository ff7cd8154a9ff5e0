// Package main provides the entry point for the storemap CLI.
//
// storemap walks a sitemap hierarchy from a root index and prints the store
// page URLs it discovers as JSON.
//
// Usage:
//
//	storemap https://example.com/sitemap_index.xml
//	storemap --marker /trgovina/ --concurrency 8 https://example.com/sitemap_index.xml
//
// See --help for all available options.
package main

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env files - .env.local takes priority for development
	godotenv.Load(".env.local", ".env")

	setupLogging()

	// Initialise Sentry for error tracking when configured
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Environment:      getEnvWithDefault("APP_ENV", "development"),
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise Sentry")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	Execute()
}

// setupLogging configures the logging system
func setupLogging() {
	level, err := zerolog.ParseLevel(getEnvWithDefault("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	// Use console writer in development; JSON elsewhere. Logs go to stderr
	// so stdout stays clean for the JSON result.
	if getEnvWithDefault("APP_ENV", "development") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "storemap").Logger()
	}
}

// getEnvWithDefault gets an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
