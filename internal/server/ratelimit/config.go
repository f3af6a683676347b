package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit of one endpoint tier. Requests matching the
// same tier share a bucket per client, whatever job or stage they address.
type EndpointConfig struct {
	Name   string        // Tier name, also the env prefix RATE_LIMIT_<NAME>_*
	Path   string        // Exact path, or a prefix when it ends with "/"
	Method string        // HTTP method
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// LoadConfig loads rate limiting configuration from environment variables.
// Each tier's limit and window can be overridden with
// RATE_LIMIT_<TIER>_LIMIT and RATE_LIMIT_<TIER>_WINDOW.
func LoadConfig() *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{
			Enabled: false,
		}
	}

	endpoints := DefaultEndpointConfigs()
	for i := range endpoints {
		prefix := "RATE_LIMIT_" + strings.ToUpper(endpoints[i].Name)
		endpoints[i].Limit = getEnvInt(prefix+"_LIMIT", endpoints[i].Limit)
		endpoints[i].Window = getEnvDuration(prefix+"_WINDOW", endpoints[i].Window)
		endpoints[i].Burst = min(endpoints[i].Burst, endpoints[i].Limit)
	}

	return &Config{
		Enabled:         enabled,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(getEnvString("RATE_LIMIT_WHITELIST", "")),
		Blacklist:       parseIPList(getEnvString("RATE_LIMIT_BLACKLIST", "")),
		EndpointConfigs: endpoints,
	}
}

// DefaultEndpointConfigs returns the built-in endpoint tiers.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Uploads parse a document and start validation.
		{Name: "upload", Path: "/jobs", Method: "POST", Limit: 20, Window: time.Hour, Burst: 5},

		// Transitions, generate-more and regeneration each call the generative service.
		{Name: "generate", Path: "/jobs/", Method: "POST", Limit: 120, Window: time.Hour, Burst: 10},

		{Name: "edit", Path: "/jobs/", Method: "PUT", Limit: 300, Window: time.Minute, Burst: 30},
		{Name: "delete", Path: "/jobs/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
	}
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a map.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	if list == "" {
		return result
	}

	ips := strings.Split(list, ",")
	for _, ip := range ips {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}

	return result
}

