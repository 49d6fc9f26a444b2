package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	Resolver  ResolverConfig
	Recommend RecommendConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/flixtube?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds editor token settings. An empty Secret leaves write routes open.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the thumbnail mirror bucket.
type AWSConfig struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	ThumbnailsBucket string
}

// ResolverConfig controls the upstream video page scraper.
type ResolverConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
}

// RecommendConfig controls recommendation defaults and index caching.
type RecommendConfig struct {
	DefaultK int
	CacheTTL time.Duration
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// MirrorEnabled reports whether thumbnails should be copied to S3.
func (c AWSConfig) MirrorEnabled() bool {
	return c.Region != "" && c.ThumbnailsBucket != ""
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "flixtube"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24*30),
		},
		AWS: AWSConfig{
			Region:           getEnv("AWS_REGION", ""),
			AccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ThumbnailsBucket: getEnv("AWS_S3_THUMBNAILS_BUCKET", ""),
		},
		Resolver: ResolverConfig{
			BaseURL:    getEnv("RESOLVER_BASE_URL", "https://www.youtube.com"),
			Timeout:    time.Duration(getEnvInt("RESOLVER_TIMEOUT_SEC", 10)) * time.Second,
			RatePerSec: getEnvFloat("RESOLVER_RATE_PER_SEC", 2),
		},
		Recommend: RecommendConfig{
			DefaultK: getEnvInt("RECOMMEND_DEFAULT_K", 3),
			CacheTTL: time.Duration(getEnvInt("RECOMMEND_CACHE_TTL_MIN", 10)) * time.Minute,
		},
	}
	if cfg.Recommend.DefaultK <= 0 {
		return nil, fmt.Errorf("RECOMMEND_DEFAULT_K must be positive, got %d", cfg.Recommend.DefaultK)
	}
	if cfg.Resolver.Timeout <= 0 {
		return nil, fmt.Errorf("RESOLVER_TIMEOUT_SEC must be positive")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
