package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the realtime client configuration
type Config struct {
	// Realtime server connection settings
	ServerURL string
	Token     string

	// Timeouts and intervals
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	// Reconnection settings
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     int

	// Health check server
	HealthCheckPort int // Port for health check HTTP server (0 = disabled)
}

// LoadFromEnv loads configuration from environment variables
// All timing configuration must be explicitly set - no defaults are used
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}

	// Required: Realtime server URL
	cfg.ServerURL = os.Getenv("REALTIME_URL")
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("REALTIME_URL environment variable is required")
	}

	// Optional: auth token, attached to the dial URL as a query parameter.
	// Supplied by the surrounding application; the client never refreshes it.
	cfg.Token = os.Getenv("REALTIME_TOKEN")

	if timeoutStr := os.Getenv("CONNECT_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid CONNECT_TIMEOUT: %w", err)
		}
		cfg.ConnectTimeout = timeout
	} else {
		return nil, fmt.Errorf("CONNECT_TIMEOUT environment variable is required")
	}

	if intervalStr := os.Getenv("HEARTBEAT_INTERVAL"); intervalStr != "" {
		interval, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("invalid HEARTBEAT_INTERVAL: %w", err)
		}
		cfg.HeartbeatInterval = interval
	} else {
		return nil, fmt.Errorf("HEARTBEAT_INTERVAL environment variable is required")
	}

	if timeoutStr := os.Getenv("HEARTBEAT_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid HEARTBEAT_TIMEOUT: %w", err)
		}
		cfg.HeartbeatTimeout = timeout
	} else {
		return nil, fmt.Errorf("HEARTBEAT_TIMEOUT environment variable is required")
	}

	if cfg.HeartbeatTimeout <= cfg.HeartbeatInterval {
		return nil, fmt.Errorf("HEARTBEAT_TIMEOUT must be greater than HEARTBEAT_INTERVAL")
	}

	if backoffStr := os.Getenv("INITIAL_BACKOFF"); backoffStr != "" {
		backoff, err := time.ParseDuration(backoffStr)
		if err != nil {
			return nil, fmt.Errorf("invalid INITIAL_BACKOFF: %w", err)
		}
		cfg.InitialBackoff = backoff
	} else {
		return nil, fmt.Errorf("INITIAL_BACKOFF environment variable is required")
	}

	if backoffStr := os.Getenv("MAX_BACKOFF"); backoffStr != "" {
		backoff, err := time.ParseDuration(backoffStr)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_BACKOFF: %w", err)
		}
		cfg.MaxBackoff = backoff
	} else {
		return nil, fmt.Errorf("MAX_BACKOFF environment variable is required")
	}

	// Required: Max Retries (0 = retry forever)
	retriesStr := os.Getenv("MAX_RETRIES")
	if retriesStr == "" {
		return nil, fmt.Errorf("MAX_RETRIES environment variable is required")
	}
	retries, err := strconv.Atoi(retriesStr)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_RETRIES: %w", err)
	}
	if retries < 0 {
		return nil, fmt.Errorf("MAX_RETRIES must not be negative")
	}
	cfg.MaxRetries = retries

	// Optional: Health check port (0 = disabled)
	if healthPortStr := os.Getenv("HEALTH_CHECK_PORT"); healthPortStr != "" {
		healthPort, err := strconv.Atoi(healthPortStr)
		if err != nil {
			return nil, fmt.Errorf("invalid HEALTH_CHECK_PORT: %w", err)
		}
		if healthPort < 0 || healthPort > 65535 {
			return nil, fmt.Errorf("HEALTH_CHECK_PORT must be between 0 and 65535")
		}
		cfg.HealthCheckPort = healthPort
	}

	return cfg, nil
}
