package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version information set at build time
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// Config is the typed view of the loaded configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Search    SearchConfig    `mapstructure:"search"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	PDF       PDFConfig       `mapstructure:"pdf"`
	AI        AIConfig        `mapstructure:"ai"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Log       LogConfig       `mapstructure:"log"`
	Debug     bool            `mapstructure:"debug"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Type           string `mapstructure:"type"`
	DSN            string `mapstructure:"dsn"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdleTime    int    `mapstructure:"max_idle_time"`
}

// PathsConfig contains directory paths
type PathsConfig struct {
	Data    string `mapstructure:"data"`
	Uploads string `mapstructure:"uploads"`
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig contains result cache settings
type CacheConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// SearchConfig contains search limits
type SearchConfig struct {
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// RateLimitConfig contains per-client request limits
type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
}

// CORSConfig contains cross-origin settings. GET /api/v1/search/materials
// and GET /health accept any origin regardless of AllowedOrigins.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   string   `mapstructure:"allowed_methods"`
	AllowedHeaders   string   `mapstructure:"allowed_headers"`
	ExposedHeaders   string   `mapstructure:"exposed_headers"`
	MaxAge           int      `mapstructure:"max_age"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// PDFConfig contains PDF library settings. Without a license key pages are
// read by the built-in reader; with one, by unipdf using the offline key.
type PDFConfig struct {
	LicenseKey      string `mapstructure:"license_key"`
	LicenseCustomer string `mapstructure:"license_customer"`
}

// AIConfig contains metadata extraction settings
type AIConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	MaxChars        int           `mapstructure:"max_chars"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerRecovery time.Duration `mapstructure:"breaker_recovery"`
}

// IngestConfig contains ingestion pipeline settings
type IngestConfig struct {
	Workers int `mapstructure:"workers"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	AccessFile string `mapstructure:"access_file"`
}

// Load reads .env, the optional config file and STUDYHUB_* environment
// variables, in increasing order of precedence. configFile may be empty.
func Load(configFile string) (*viper.Viper, error) {
	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigType("yaml")

	v.SetEnvPrefix("STUDYHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/studyhub")
		v.AddConfigPath("$HOME/.studyhub")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	resolvePaths(v)

	return v, nil
}

// Unmarshal decodes v into a Config
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Path defaults
	v.SetDefault("paths.data", "./data")
	v.SetDefault("paths.uploads", "{paths.data}/uploads")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "{paths.data}/studyhub.db")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_time", 300)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.key_prefix", "studyhub:")

	// Search defaults
	v.SetDefault("search.default_limit", 5)
	v.SetDefault("search.max_limit", 20)
	v.SetDefault("search.cache_ttl", "5m")

	// Rate limiting defaults
	v.SetDefault("ratelimit.per_minute", 60)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{
		"http://localhost:3000",
		"http://localhost:3003",
		"http://localhost:3004",
		"http://localhost:5173",
	})
	v.SetDefault("cors.allowed_methods", "GET, POST, OPTIONS")
	v.SetDefault("cors.allowed_headers", "Content-Type, Authorization, X-Request-ID")
	v.SetDefault("cors.exposed_headers", "X-Request-ID")
	v.SetDefault("cors.max_age", 3600)
	v.SetDefault("cors.allow_credentials", true)

	// PDF defaults
	v.SetDefault("pdf.license_key", "")
	v.SetDefault("pdf.license_customer", "")

	// AI metadata defaults
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.max_chars", 30000)
	v.SetDefault("ai.max_attempts", 3)
	v.SetDefault("ai.breaker_failures", 5)
	v.SetDefault("ai.breaker_recovery", "30s")

	// Ingestion defaults
	v.SetDefault("ingest.workers", 4)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.access_file", "")

	v.SetDefault("debug", false)
}

// resolvePaths substitutes {key} references in path-like values.
func resolvePaths(v *viper.Viper) {
	for _, key := range []string{"paths.uploads", "database.dsn", "log.access_file"} {
		value := v.GetString(key)
		if !strings.Contains(value, "{") {
			continue
		}

		resolved := value
		for _, varKey := range []string{"paths.data"} {
			resolved = strings.ReplaceAll(resolved, fmt.Sprintf("{%s}", varKey), v.GetString(varKey))
		}

		if key == "database.dsn" && v.GetString("database.type") != "sqlite" {
			continue
		}
		v.Set(key, expandPath(resolved))
	}
}

func expandPath(path string) string {
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.Replace(path, "~", home, 1)
		}
	}

	return filepath.Clean(path)
}

// ValidateConfig validates the configuration
func ValidateConfig(v *viper.Viper) error {
	switch dbType := v.GetString("database.type"); dbType {
	case "sqlite":
		if v.GetString("database.dsn") == "" {
			return fmt.Errorf("database.dsn is required for SQLite")
		}
	case "postgres", "postgresql", "mysql":
		dsn := v.GetString("database.dsn")
		if dsn == "" || strings.Contains(dsn, "{") {
			return fmt.Errorf("database.dsn is required for %s", dbType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", dbType)
	}

	port := v.GetInt("server.port")
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %d", port)
	}

	defaultLimit := v.GetInt("search.default_limit")
	maxLimit := v.GetInt("search.max_limit")
	if maxLimit < 1 {
		return fmt.Errorf("search.max_limit must be positive, got %d", maxLimit)
	}
	if defaultLimit < 1 || defaultLimit > maxLimit {
		return fmt.Errorf("search.default_limit must be between 1 and %d, got %d", maxLimit, defaultLimit)
	}

	if v.GetInt("ratelimit.per_minute") < 0 {
		return fmt.Errorf("ratelimit.per_minute cannot be negative")
	}

	if v.GetString("pdf.license_key") != "" && v.GetString("pdf.license_customer") == "" {
		return fmt.Errorf("pdf.license_customer is required when pdf.license_key is set")
	}

	if v.GetBool("ai.enabled") && v.GetString("ai.api_key") == "" {
		return fmt.Errorf("ai.api_key is required when ai is enabled")
	}

	return nil
}
