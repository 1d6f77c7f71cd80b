package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	DB      DatabaseConfig
	Redis   RedisConfig
	Catalog CatalogConfig
	Cart    CartConfig
	HTTP    HTTPConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MigrationsPath string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// CatalogConfig maps catalog category ids to product variant kinds.
type CatalogConfig struct {
	// Variants is parsed from CATALOG_VARIANTS ("2:clothing,3:tech").
	Variants map[int]string
}

// CartConfig contains the durable cart store settings.
type CartConfig struct {
	KeyPrefix string
	TTL       time.Duration // 0 keeps carts until cleared
}

// HTTPConfig contains transport level settings.
type HTTPConfig struct {
	AllowedHosts      []string
	GraphQLDebug      bool
	CheckoutRateLimit int // checkouts per IP per minute, 0 disables
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")

	// Database
	cfg.DB = DatabaseConfig{
		Host:           getEnv("DB_HOST", ""),
		Port:           getEnv("DB_PORT", "5432"),
		User:           getEnv("DB_USER", ""),
		Password:       getEnv("DB_PASSWORD", ""),
		Name:           getEnv("DB_NAME", ""),
		SSLMode:        getEnv("DB_SSLMODE", "disable"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Catalog
	variants, err := ParseVariants(getEnv("CATALOG_VARIANTS", "2:clothing,3:tech"))
	if err != nil {
		return nil, fmt.Errorf("invalid CATALOG_VARIANTS: %w", err)
	}
	cfg.Catalog.Variants = variants

	// Cart
	cfg.Cart.KeyPrefix = getEnv("CART_KEY_PREFIX", "scandishop_cart_v1")
	if cfg.Cart.TTL, err = parseDurationEnv("CART_TTL", "0s"); err != nil {
		return nil, fmt.Errorf("invalid CART_TTL: %w", err)
	}

	// HTTP
	cfg.HTTP = HTTPConfig{
		AllowedHosts:      splitList(getEnv("CORS_ALLOWED_HOSTS", "localhost:3000,127.0.0.1:3000,localhost:5173")),
		GraphQLDebug:      getEnvBool("GRAPHQL_DEBUG", false),
		CheckoutRateLimit: getEnvInt("CHECKOUT_RATE_LIMIT", 10),
	}

	// Basic validation for DB parameters.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	return cfg, nil
}

// ParseVariants parses a comma separated list of categoryId:kind pairs.
// Kinds are lower-cased; validation against the known kinds happens when the
// registry is built.
func ParseVariants(raw string) (map[int]string, error) {
	out := make(map[int]string)
	for _, pair := range splitList(raw) {
		idPart, kind, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q is not categoryId:kind", pair)
		}
		id, err := strconv.Atoi(strings.TrimSpace(idPart))
		if err != nil {
			return nil, fmt.Errorf("entry %q: bad category id: %w", pair, err)
		}
		kind = strings.ToLower(strings.TrimSpace(kind))
		if kind == "" {
			return nil, fmt.Errorf("entry %q: empty kind", pair)
		}
		out[id] = kind
	}
	return out, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
