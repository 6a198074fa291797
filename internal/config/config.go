package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "jwt_secret"

type Config struct {
	AppEnv   string
	AuthAddr string
	LogLevel string

	DBDriver    string
	DatabaseURL string

	JWTSecret     []byte
	RefreshSecret []byte
	// DevSecret is set when JWTSecret fell back to the public development value.
	DevSecret bool

	RevocationBackend string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisOpTimeout    time.Duration
	RedisMaxRetries   int

	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads .env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("notice: .env not loaded: %v", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	appEnv := EnvDefault("APP_ENV", "production")

	jwtSecret := os.Getenv("JWT_SECRET")
	devSecret := false
	if jwtSecret == "" && appEnv == "dev" {
		jwtSecret = devJWTSecret
		devSecret = true
	}
	refreshSecret := EnvDefault("REFRESH_SECRET", jwtSecret)

	return Config{
		AppEnv:   appEnv,
		AuthAddr: EnvDefault("AUTH_ADDR", ":8080"),
		LogLevel: EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    strings.ToLower(EnvDefault("DB_DRIVER", "sqlite")),
		DatabaseURL: EnvDefault("DATABASE_URL", "auth.db"),

		JWTSecret:     []byte(jwtSecret),
		RefreshSecret: []byte(refreshSecret),
		DevSecret:     devSecret,

		RevocationBackend: strings.ToLower(EnvDefault("REVOCATION_BACKEND", "redis")),
		RedisAddr:         EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           EnvIntDefault("REDIS_DB", 0),
		RedisOpTimeout:    EnvDurationDefault("REDIS_OP_TIMEOUT", 2*time.Second),
		RedisMaxRetries:   EnvIntDefault("REDIS_MAX_RETRIES", 2),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "user_events"),
	}
}

func (c Config) Validate() error {
	var missing []string
	if len(c.JWTSecret) == 0 {
		missing = append(missing, "JWT_SECRET")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.RevocationBackend == "redis" && c.RedisAddr == "" {
		missing = append(missing, "REDIS_ADDR")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env %s", strings.Join(missing, ", "))
	}

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.RevocationBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported REVOCATION_BACKEND %q", c.RevocationBackend)
	}
	if c.RedisOpTimeout <= 0 {
		return errors.New("REDIS_OP_TIMEOUT must be positive")
	}
	return nil
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
