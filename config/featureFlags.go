package config

import (
	"os"
	"strings"
)

func envTrue(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// OutboxDirectProcessing runs the in-process outbox worker instead of relying
// on Pub/Sub push delivery. Defaults to on when Pub/Sub is not configured.
//
// Set via env:
// - OUTBOX_DIRECT_PROCESSING=true|false
func OutboxDirectProcessing() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("OUTBOX_DIRECT_PROCESSING")))
	switch v {
	case "":
		return !PubSubConfigured()
	case "false", "0", "no", "n":
		return false
	}
	return envTrue("OUTBOX_DIRECT_PROCESSING")
}

// SkipMigrations disables AutoMigrate on startup (run migrations as a separate job).
func SkipMigrations() bool {
	return envTrue("SKIP_MIGRATIONS")
}
