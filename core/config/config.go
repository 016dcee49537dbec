package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App      AppConfig
	Paths    PathsConfig
	Database DatabaseConfig
	Inline   InlineConfig
}

type AppConfig struct {
	Version        string
	Port           string
	Debug          bool
	Environment    string
	BasePath       string
	BasicAuth      []string
	TrustedProxies []string
}

type PathsConfig struct {
	Storages string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type InlineConfig struct {
	// ProviderBaseURL is the upstream bot provider endpoint inline
	// queries are fetched from.
	ProviderBaseURL string
	// DirectoryBaseURL is the peer/bot directory service.
	DirectoryBaseURL string
	RequestTimeout   time.Duration
	CacheLowWater    int
	CacheHighWater   int
	// MinPersistTimeout gates persistence: server-declared cache
	// timeouts must exceed it for the response to be written back.
	MinPersistTimeout time.Duration
	// Fixed location for installations bound to a venue; when set it
	// feeds the location gate for geo-requiring bots.
	FixedLatitude  float64
	FixedLongitude float64
	HasFixedPoint  bool
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from environment variables or defaults.
// Environment access goes through viper so values picked up by
// utils.LoadConfig's .env pass are visible here too.
func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()

	storages := getEnv("APP_STORAGES_DIR", "storages")

	var basicAuth []string
	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		basicAuth = strings.Split(v, ",")
	}
	var trustedProxies []string
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		trustedProxies = strings.Split(v, ",")
	}

	cfg := &Config{
		App: AppConfig{
			Version:        "v1.2.0",
			Port:           getEnv("APP_PORT", "3000"),
			Debug:          getEnvBool("APP_DEBUG", false),
			Environment:    getEnv("APP_ENV", "development"),
			BasePath:       getEnv("APP_BASE_PATH", ""),
			BasicAuth:      basicAuth,
			TrustedProxies: trustedProxies,
		},
		Paths: PathsConfig{
			Storages: storages,
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", filepath.Join(storages, "inlinegw.db")),
			ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
			ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
			ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
			ValkeyDB:        getEnvInt("VALKEY_DB", 0),
			ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "inlinegw:"),
		},
		Inline: InlineConfig{
			ProviderBaseURL:   getEnv("INLINE_PROVIDER_BASE_URL", "http://localhost:8801"),
			DirectoryBaseURL:  getEnv("INLINE_DIRECTORY_BASE_URL", "http://localhost:8802"),
			RequestTimeout:    time.Duration(getEnvInt("INLINE_REQUEST_TIMEOUT_SECS", 30)) * time.Second,
			CacheLowWater:     getEnvInt("INLINE_CACHE_LOW_WATER", 40),
			CacheHighWater:    getEnvInt("INLINE_CACHE_HIGH_WATER", 60),
			MinPersistTimeout: time.Duration(getEnvInt("INLINE_MIN_PERSIST_SECS", 10)) * time.Second,
		},
	}

	if lat, lon := getEnv("INLINE_FIXED_LATITUDE", ""), getEnv("INLINE_FIXED_LONGITUDE", ""); lat != "" && lon != "" {
		cfg.Inline.FixedLatitude = getEnvFloat("INLINE_FIXED_LATITUDE", 0)
		cfg.Inline.FixedLongitude = getEnvFloat("INLINE_FIXED_LONGITUDE", 0)
		cfg.Inline.HasFixedPoint = true
	}

	Global = cfg
	return cfg, nil
}
