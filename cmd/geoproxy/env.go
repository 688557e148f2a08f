package main

import "os"

// Environment variables read as flag defaults.
const (
	envConfigPath = "GEOPROXY_CONFIG_PATH"
	envLogLevel   = "GEOPROXY_LOG_LEVEL"
	envLogFormat  = "GEOPROXY_LOG_FORMAT"
)

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
