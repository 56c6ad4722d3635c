package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerURL string // Required: authorization server base URL
	ClientID  string // Required: OAuth2 client id for this installation

	LoginHint    string        // Optional: prefill for the server's account picker
	Scopes       []string      // Optional: extra scopes on top of openid/offline_access
	MFA          string        // Optional: MFA method to request via acr_values (e.g. otp)
	DatabaseFile string        // Optional: path to SQLite database file (default: ./login.db)
	CallbackPort int           // Optional: loopback port for the redirect (default: 8765)
	LoginTimeout time.Duration // Optional: how long to wait for the browser redirect (default: 5m)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: text)

	// Command is the requested operation: login, status, refresh or logout.
	// Set from the command line, not the environment.
	Command string
}

func LoadConfig() Config {
	return Config{
		ServerURL:    os.Getenv("LOGIN_SERVER_URL"),
		ClientID:     os.Getenv("LOGIN_CLIENT_ID"),
		LoginHint:    os.Getenv("LOGIN_HINT"),
		Scopes:       splitScopes(os.Getenv("LOGIN_SCOPES")),
		MFA:          os.Getenv("LOGIN_MFA"),
		DatabaseFile: getEnvOrDefault("LOGIN_DATABASE_FILE", "login.db"),
		CallbackPort: getEnvIntOrDefault("LOGIN_CALLBACK_PORT", 8765),
		LoginTimeout: getEnvDurationOrDefault("LOGIN_TIMEOUT", 5*time.Minute),
		Env:          getEnvOrDefault("ENV", "dev"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		// A CLI defaults to human-readable logs, unlike the services.
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

func splitScopes(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Fields(value)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
