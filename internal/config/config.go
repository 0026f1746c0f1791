package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Session SessionConfig
	Payment PaymentConfig
}

// Load reads configuration from environment variables. A missing payment
// secret is an error: the process must not accept connections it cannot
// charge for.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	payment, err := loadPaymentConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Store:   loadStoreConfig(),
		Session: session,
		Payment: payment,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// StoreConfig describes the persistence backends. Empty values fall back to
// in-memory stores, which is enough for local development.
type StoreConfig struct {
	DatabaseURL string
	RedisAddr   string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisAddr:   strings.TrimSpace(os.Getenv("REDIS_ADDR")),
	}
}

// SessionConfig describes session signing and expiry.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	ttlMinutes, err := parseOptionalIntEnv("SESSION_TTL_MINUTES")
	if err != nil {
		return SessionConfig{}, err
	}
	ttl := 24 * time.Hour
	if ttlMinutes != nil {
		if *ttlMinutes < 1 {
			return SessionConfig{}, fmt.Errorf("SESSION_TTL_MINUTES must be positive, got %d", *ttlMinutes)
		}
		ttl = time.Duration(*ttlMinutes) * time.Minute
	}

	return SessionConfig{
		Secret: strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		TTL:    ttl,
	}, nil
}

// PaymentConfig describes the payment provider credentials and endpoints.
type PaymentConfig struct {
	SecretKey       string
	BaseURL         string
	CallbackBaseURL string
	Timeout         time.Duration
}

func loadPaymentConfig() (PaymentConfig, error) {
	secret := strings.TrimSpace(os.Getenv("PAYSTACK_SECRET_KEY"))
	if secret == "" {
		return PaymentConfig{}, fmt.Errorf("PAYSTACK_SECRET_KEY is required")
	}

	timeoutSeconds, err := parseOptionalIntEnv("PAYMENT_TIMEOUT_SECONDS")
	if err != nil {
		return PaymentConfig{}, err
	}
	timeout := 10 * time.Second
	if timeoutSeconds != nil {
		if *timeoutSeconds < 1 {
			return PaymentConfig{}, fmt.Errorf("PAYMENT_TIMEOUT_SECONDS must be positive, got %d", *timeoutSeconds)
		}
		timeout = time.Duration(*timeoutSeconds) * time.Second
	}

	return PaymentConfig{
		SecretKey:       secret,
		BaseURL:         getEnvOrDefault("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		CallbackBaseURL: getEnvOrDefault("CALLBACK_BASE_URL", "http://localhost:8080"),
		Timeout:         timeout,
	}, nil
}

// CallbackURL is the absolute address the provider redirects to after a
// charge attempt.
func (c PaymentConfig) CallbackURL() string {
	return strings.TrimRight(c.CallbackBaseURL, "/") + "/payment/callback"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
