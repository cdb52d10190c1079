package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds environment-driven configuration. Load it once at startup;
// nothing reads the environment after that.
type Config struct {
	Addr           string
	Secret         string
	StoreDriver    string
	MongoURI       string
	MongoDatabase  string
	DatabaseURL    string
	AllowedOrigins []string
	TokenTTL       time.Duration
	SearchMaxLimit int64
	LogLevel       string
}

// Load reads configuration from environment variables and validates it.
func Load() (Config, error) {
	cfg := Config{
		Addr:           ":" + getenv("PORT", "8080"),
		Secret:         os.Getenv("SECRET"),
		StoreDriver:    strings.ToLower(getenv("STORE_DRIVER", DriverMongo)),
		MongoURI:       getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getenv("MONGO_DATABASE", "userd"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "*")),
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}

	ttl, err := time.ParseDuration(getenv("TOKEN_TTL", "72h"))
	if err != nil {
		return Config{}, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	cfg.TokenTTL = ttl

	maxLimit, err := strconv.ParseInt(getenv("SEARCH_MAX_LIMIT", "100"), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("SEARCH_MAX_LIMIT: %w", err)
	}
	cfg.SearchMaxLimit = maxLimit

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Secret == "" {
		return errors.New("SECRET is not set")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.SearchMaxLimit <= 0 {
		return errors.New("SEARCH_MAX_LIMIT must be positive")
	}

	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is not set")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// CORSOrigins renders AllowedOrigins the way the cors middleware expects.
func (c Config) CORSOrigins() string {
	return strings.Join(c.AllowedOrigins, ",")
}

// WildcardOrigin reports whether any origin is allowed.
func (c Config) WildcardOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
