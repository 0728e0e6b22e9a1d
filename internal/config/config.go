package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	applog "expensetracker/internal/log"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	RedirectDelay      time.Duration

	// Expense API. An empty base URL selects the in-memory gateway.
	GatewayBaseURL string
	GatewayTimeout time.Duration
	SeedFile       string

	// AMQP. An empty URL disables event publishing.
	AMQPURL      string
	AMQPExchange string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		RedirectDelay:      getEnvDuration("REDIRECT_DELAY", 2*time.Second),

		GatewayBaseURL: getEnv("GATEWAY_BASE_URL", ""),
		GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		SeedFile:       getEnv("SEED_FILE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// UsesRemoteGateway reports whether the REST gateway is configured.
func (c *Config) UsesRemoteGateway() bool {
	return strings.TrimSpace(c.GatewayBaseURL) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.UsesRemoteGateway() {
		if u, err := url.Parse(c.GatewayBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid gateway URL '%s': %v", c.GatewayBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid gateway URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		} else if u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid gateway URL '%s': missing host", c.GatewayBaseURL))
		}
	} else if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("seed file does not exist: %s", c.SeedFile))
		}
	}

	if c.GatewayTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid gateway timeout %v: must be at least 1 second", c.GatewayTimeout))
	} else if c.GatewayTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid gateway timeout %v: must be at most 2 minutes", c.GatewayTimeout))
	}

	if c.RedirectDelay <= 0 || c.RedirectDelay > 30*time.Second {
		errors = append(errors, fmt.Sprintf("invalid redirect delay %v: must be greater than 0 and at most 30 seconds", c.RedirectDelay))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
