package env

import "os"

// Get reads an environment variable, falling back when it is unset or empty.
// Config proper goes through envconfig; this covers the few knobs read before
// configuration is loaded (log format, port overrides).
func Get(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
