package config

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// GetAllSettings returns a map of all settings currently loaded in memory,
// for the diagnostics endpoint.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_version":              Global.App.Version,
		"app_debug":                Global.App.Debug,
		"db_driver":                Global.Database.Driver,
		"valkey_enabled":           Global.Database.ValkeyEnabled,
		"inline_provider_base_url": Global.Inline.ProviderBaseURL,
		"inline_cache_low_water":   Global.Inline.CacheLowWater,
		"inline_cache_high_water":  Global.Inline.CacheHighWater,
		"inline_min_persist_secs":  int(Global.Inline.MinPersistTimeout.Seconds()),
	}
}

// Helpers. All reads go through viper so env bindings set up by
// utils.LoadConfig (and any future config file) apply uniformly.
func getEnv(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := viper.GetString(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := viper.GetString(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := viper.GetString(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}
