// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the settlement engine.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// Payment gateway (PayPal Orders v2).
	PayPalBaseURL   string
	PayPalClientID  string
	PayPalSecret    string
	PayPalReturnURL string
	PayPalCancelURL string

	// Shared secret verifying provider webhook callbacks.
	WebhookSecret string

	// Key signing audit entries. Empty disables signing.
	AuditSigningKey string

	// Sweep intervals in hours.
	ReleaseSweepHours int
	RemindSweepHours  int
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	clientID := os.Getenv("PAYPAL_CLIENT_ID")
	if clientID == "" {
		return nil, fmt.Errorf("PAYPAL_CLIENT_ID is required")
	}
	secret := os.Getenv("PAYPAL_CLIENT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("PAYPAL_CLIENT_SECRET is required")
	}

	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	if webhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}

	baseURL := os.Getenv("PAYPAL_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api-m.sandbox.paypal.com"
	}
	returnURL := os.Getenv("PAYPAL_RETURN_URL")
	if returnURL == "" {
		returnURL = "https://app.taskpay.example/payments/return"
	}
	cancelURL := os.Getenv("PAYPAL_CANCEL_URL")
	if cancelURL == "" {
		cancelURL = "https://app.taskpay.example/payments/cancel"
	}

	port := os.Getenv("ESCROW_PORT")
	if port == "" {
		port = "8083"
	}

	releaseHours, err := intEnv("RELEASE_SWEEP_HOURS", 1)
	if err != nil {
		return nil, err
	}
	remindHours, err := intEnv("REMIND_SWEEP_HOURS", 6)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:              port,
		DatabaseURL:       dbURL,
		RedisURL:          redisURL,
		PayPalBaseURL:     baseURL,
		PayPalClientID:    clientID,
		PayPalSecret:      secret,
		PayPalReturnURL:   returnURL,
		PayPalCancelURL:   cancelURL,
		WebhookSecret:     webhookSecret,
		AuditSigningKey:   os.Getenv("AUDIT_SIGNING_KEY"),
		ReleaseSweepHours: releaseHours,
		RemindSweepHours:  remindHours,
	}, nil
}

func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return n, nil
}
