// Package config reads process configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAdapterURL       = "https://xiaozhi_music.monpham.work"
	defaultCommandTimeout   = 15 * time.Second
	defaultDiscoveryTimeout = 10 * time.Second
)

// Config holds everything the server reads from its environment.
type Config struct {
	// AdapterURL is the base URL of the music adapter service.
	AdapterURL string
	// VerifySSL controls TLS verification for the adapter only; the adapter
	// may run behind a self-signed certificate in development.
	VerifySSL bool
	// LogLevel is the raw MCP_HOMECAST_LOG_LEVEL value; main parses it.
	LogLevel string
	// CommandTimeout bounds every per-device command (status, play, ...).
	CommandTimeout time.Duration
	// DiscoveryTimeout is the default scan duration when the discover tool
	// is called without a timeout argument.
	DiscoveryTimeout time.Duration
}

func Load() *Config {
	return &Config{
		AdapterURL:       strings.TrimRight(getEnvOrDefault("ADAPTER_URL", defaultAdapterURL), "/"),
		VerifySSL:        boolEnv("VERIFY_SSL", true),
		LogLevel:         os.Getenv("MCP_HOMECAST_LOG_LEVEL"),
		CommandTimeout:   durationEnv("MCP_HOMECAST_COMMAND_TIMEOUT", defaultCommandTimeout),
		DiscoveryTimeout: defaultDiscoveryTimeout,
	}
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
