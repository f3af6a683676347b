// Package config provides configuration loading and validation for the server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/brd-pipeline/internal/generation"
	"github.com/jonathan/brd-pipeline/internal/llm"
	"github.com/jonathan/brd-pipeline/internal/types"
	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultPort             = 8080
	DefaultMaxDocumentBytes = 10 << 20
)

// Config represents the server configuration that can be loaded from a JSON
// or YAML file. All fields are optional; missing values use defaults.
// Durations are Go duration strings such as "2s" or "5m".
type Config struct {
	Port   int    `json:"port,omitempty" yaml:"port,omitempty"`
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"` // Gemini API key

	// Resilience policy for the external generative service
	MaxAttempts    int    `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	BaseDelay      string `json:"base_delay,omitempty" yaml:"base_delay,omitempty"`
	AttemptTimeout string `json:"attempt_timeout,omitempty" yaml:"attempt_timeout,omitempty"`
	ConnectTimeout string `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`

	// Model overrides keyed by tier (lite, standard, advanced)
	Models map[string]string `json:"models,omitempty" yaml:"models,omitempty"`

	MaxDocumentBytes int64 `json:"max_document_bytes,omitempty" yaml:"max_document_bytes,omitempty"`

	// Artifacts are the optional stages enabled for jobs that do not say otherwise
	Artifacts *types.ArtifactsConfig `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// LoadConfig loads configuration from a .json, .yaml or .yml file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file type: %s", filepath.Ext(path))
	}

	return &cfg, nil
}

// ApplyEnv overrides fields with values from the environment. Unset or
// unparsable variables leave the field unchanged.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v, ok := envInt("PORT"); ok {
		c.Port = v
	}
	if v, ok := envInt("LLM_MAX_ATTEMPTS"); ok {
		c.MaxAttempts = v
	}
	if v := os.Getenv("LLM_BASE_DELAY"); v != "" {
		c.BaseDelay = v
	}
	if v := os.Getenv("LLM_ATTEMPT_TIMEOUT"); v != "" {
		c.AttemptTimeout = v
	}
	if v := os.Getenv("LLM_CONNECT_TIMEOUT"); v != "" {
		c.ConnectTimeout = v
	}
	if v, ok := envInt("MAX_DOCUMENT_BYTES"); ok {
		c.MaxDocumentBytes = int64(v)
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Validate checks that the configuration has valid values.
// Note: the API key is not required here; the serve command checks it.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("config error: 'max_attempts' must be non-negative")
	}
	if c.MaxDocumentBytes < 0 {
		return fmt.Errorf("config error: 'max_document_bytes' must be non-negative")
	}

	durations := map[string]string{
		"base_delay":      c.BaseDelay,
		"attempt_timeout": c.AttemptTimeout,
		"connect_timeout": c.ConnectTimeout,
	}
	for name, raw := range durations {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("config error: '%s' is not a valid duration: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("config error: '%s' must be non-negative", name)
		}
	}

	for tier := range c.Models {
		switch llm.ModelTier(tier) {
		case llm.TierLite, llm.TierStandard, llm.TierAdvanced:
		default:
			return fmt.Errorf("config error: unknown model tier %q", tier)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.MaxAttempts == 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.BaseDelay == "" {
		result.BaseDelay = defaults.BaseDelay
	}
	if result.AttemptTimeout == "" {
		result.AttemptTimeout = defaults.AttemptTimeout
	}
	if result.ConnectTimeout == "" {
		result.ConnectTimeout = defaults.ConnectTimeout
	}
	if result.MaxDocumentBytes == 0 {
		result.MaxDocumentBytes = defaults.MaxDocumentBytes
	}
	if result.Artifacts == nil {
		result.Artifacts = defaults.Artifacts
	}

	models := make(map[string]string, len(defaults.Models)+len(c.Models))
	for k, v := range defaults.Models {
		models[k] = v
	}
	for k, v := range c.Models {
		models[k] = v
	}
	if len(models) > 0 {
		result.Models = models
	}

	return result
}

// Defaults returns the built-in server configuration.
func Defaults() Config {
	artifacts := types.DefaultArtifactsConfig()
	return Config{
		Port:             DefaultPort,
		MaxAttempts:      generation.DefaultMaxAttempts,
		BaseDelay:        generation.DefaultBaseDelay.String(),
		AttemptTimeout:   generation.DefaultAttemptTimeout.String(),
		ConnectTimeout:   llm.DefaultConnectTimeout.String(),
		MaxDocumentBytes: DefaultMaxDocumentBytes,
		Artifacts:        &artifacts,
	}
}

// RetryPolicy returns the resilience policy described by the configuration.
// Call after Validate; unset values fall back to the generation defaults.
func (c *Config) RetryPolicy() generation.RetryPolicy {
	policy := generation.DefaultRetryPolicy()
	if c.MaxAttempts > 0 {
		policy.MaxAttempts = c.MaxAttempts
	}
	if d, err := time.ParseDuration(c.BaseDelay); err == nil && d > 0 {
		policy.BaseDelay = d
	}
	if d, err := time.ParseDuration(c.AttemptTimeout); err == nil && d > 0 {
		policy.AttemptTimeout = d
	}
	return policy
}

// LLMConfig returns the model configuration with tier overrides applied.
func (c *Config) LLMConfig() *llm.Config {
	cfg := llm.DefaultConfig()
	for tier, model := range c.Models {
		cfg = cfg.WithModel(llm.ModelTier(tier), model)
	}
	if d, err := time.ParseDuration(c.ConnectTimeout); err == nil && d > 0 {
		cfg.ConnectTimeout = d
	}
	return cfg
}

// DefaultArtifacts returns the artifacts configuration for new jobs.
func (c *Config) DefaultArtifacts() types.ArtifactsConfig {
	if c.Artifacts == nil {
		return types.DefaultArtifactsConfig()
	}
	return *c.Artifacts
}
