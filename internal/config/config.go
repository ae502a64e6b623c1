// Package config loads the catalog service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	ServiceName string
	Port        string
	LogLevel    string

	HTTP  HTTPConfig
	Store StoreConfig

	MetricsEnabled bool
	MetricsToken   string

	// WriteRateLimitPerMin caps POST requests per client IP; 0 disables it.
	WriteRateLimitPerMin int
	TrustForwardedFor    bool
}

type HTTPConfig struct {
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type StoreConfig struct {
	Backend string
	Timeout time.Duration

	DatabaseURL string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func Load() (*Config, error) {
	http, err := loadHTTPConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	metricsEnabled, err := parseBoolEnv("METRICS_ENABLED", true)
	if err != nil {
		return nil, err
	}

	rateLimit, err := parseIntEnv("WRITE_RATE_LIMIT_PER_MIN", 0)
	if err != nil {
		return nil, err
	}
	if rateLimit < 0 {
		return nil, fmt.Errorf("WRITE_RATE_LIMIT_PER_MIN must be >= 0, got %d", rateLimit)
	}

	trustXFF, err := parseBoolEnv("TRUST_FORWARDED_FOR", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		ServiceName:          getEnvOrDefault("SERVICE_NAME", "catalog"),
		Port:                 getEnvOrDefault("PORT", "8082"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		HTTP:                 *http,
		Store:                *store,
		MetricsEnabled:       metricsEnabled,
		MetricsToken:         os.Getenv("METRICS_TOKEN"),
		WriteRateLimitPerMin: rateLimit,
		TrustForwardedFor:    trustXFF,
	}, nil
}

func loadHTTPConfig() (*HTTPConfig, error) {
	readHeader, err := parseDurationEnv("HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	shutdown, err := parseDurationEnv("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	return &HTTPConfig{ReadHeaderTimeout: readHeader, ShutdownTimeout: shutdown}, nil
}

func loadStoreConfig() (*StoreConfig, error) {
	timeout, err := parseDurationEnv("STORE_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, err
	}

	c := &StoreConfig{
		Backend:         strings.ToLower(getEnvOrDefault("STORE_BACKEND", BackendMemory)),
		Timeout:         timeout,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   getEnvOrDefault("MONGO_DATABASE", "products"),
		MongoCollection: getEnvOrDefault("MONGO_COLLECTION", "productss"),
	}

	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for STORE_BACKEND=%s", c.Backend)
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required for STORE_BACKEND=%s", c.Backend)
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", c.Backend)
	}
	return c, nil
}

func getEnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := getEnvOrDefault(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, d)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	v := getEnvOrDefault(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid int %q: %w", key, v, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	v := getEnvOrDefault(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid bool %q: %w", key, v, err)
	}
	return b, nil
}
