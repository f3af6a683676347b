package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonathan/brd-pipeline/internal/llm"
	"github.com/jonathan/brd-pipeline/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"port": 9090,
		"max_attempts": 3,
		"base_delay": "500ms",
		"models": {"advanced": "gemini-exp"},
		"artifacts": {"functional_tests": true, "gherkin_tests": false, "data_model": true, "code_generation": false}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, "500ms", cfg.BaseDelay)
	assert.Equal(t, "gemini-exp", cfg.Models["advanced"])
	require.NotNil(t, cfg.Artifacts)
	assert.False(t, cfg.Artifacts.GherkinTests)
	assert.True(t, cfg.Artifacts.DataModel)
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
port: 7070
attempt_timeout: 90s
max_document_bytes: 2048
artifacts:
  functional_tests: false
  gherkin_tests: true
  data_model: true
  code_generation: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "90s", cfg.AttemptTimeout)
	assert.Equal(t, int64(2048), cfg.MaxDocumentBytes)
	require.NotNil(t, cfg.Artifacts)
	assert.False(t, cfg.Artifacts.FunctionalTests)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config.json", `{ invalid json }`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config.yml", "port: [unterminated"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "config.toml", "port = 1"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file type")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"empty is valid", Config{}, ""},
		{"defaults are valid", Defaults(), ""},
		{"negative port", Config{Port: -1}, "'port'"},
		{"port out of range", Config{Port: 70000}, "'port'"},
		{"negative attempts", Config{MaxAttempts: -2}, "'max_attempts'"},
		{"negative document size", Config{MaxDocumentBytes: -1}, "'max_document_bytes'"},
		{"bad duration", Config{BaseDelay: "soon"}, "'base_delay' is not a valid duration"},
		{"negative duration", Config{AttemptTimeout: "-1s"}, "'attempt_timeout' must be non-negative"},
		{"unknown tier", Config{Models: map[string]string{"huge": "x"}}, "unknown model tier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := &Config{
		Port:   9000,
		Models: map[string]string{"lite": "custom-lite"},
	}
	defaults := Defaults()
	defaults.Models = map[string]string{"lite": "default-lite", "advanced": "default-pro"}

	merged := cfg.MergeWithDefaults(defaults)

	assert.Equal(t, 9000, merged.Port)
	assert.Equal(t, defaults.MaxAttempts, merged.MaxAttempts)
	assert.Equal(t, defaults.BaseDelay, merged.BaseDelay)
	assert.Equal(t, defaults.MaxDocumentBytes, merged.MaxDocumentBytes)
	assert.Equal(t, map[string]string{"lite": "custom-lite", "advanced": "default-pro"}, merged.Models)
	require.NotNil(t, merged.Artifacts)
	assert.Equal(t, types.DefaultArtifactsConfig(), *merged.Artifacts)

	// original untouched
	assert.Equal(t, 0, cfg.MaxAttempts)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("PORT", "6060")
	t.Setenv("LLM_MAX_ATTEMPTS", "7")
	t.Setenv("LLM_BASE_DELAY", "1s")
	t.Setenv("LLM_ATTEMPT_TIMEOUT", "30s")
	t.Setenv("LLM_CONNECT_TIMEOUT", "3s")
	t.Setenv("MAX_DOCUMENT_BYTES", "not-a-number")

	cfg := Config{Port: 8080, MaxDocumentBytes: 100}
	cfg.ApplyEnv()

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, 6060, cfg.Port)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, "1s", cfg.BaseDelay)
	assert.Equal(t, "30s", cfg.AttemptTimeout)
	assert.Equal(t, "3s", cfg.ConnectTimeout)
	assert.Equal(t, int64(100), cfg.MaxDocumentBytes)
}

func TestRetryPolicy(t *testing.T) {
	cfg := Config{MaxAttempts: 3, BaseDelay: "250ms"}
	policy := cfg.RetryPolicy()

	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, 5*time.Minute, policy.AttemptTimeout)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 500 * time.Millisecond}, policy.Delays())
}

func TestLLMConfig(t *testing.T) {
	cfg := Config{
		Models:         map[string]string{"advanced": "gemini-exp"},
		ConnectTimeout: "2s",
	}
	llmCfg := cfg.LLMConfig()

	assert.Equal(t, "gemini-exp", llmCfg.GetModel(llm.TierAdvanced))
	assert.Equal(t, "gemini-2.5-flash", llmCfg.GetModel(llm.TierStandard))
	assert.Equal(t, 2*time.Second, llmCfg.ConnectTimeout)
}

func TestDefaultArtifacts(t *testing.T) {
	var cfg Config
	assert.Equal(t, types.DefaultArtifactsConfig(), cfg.DefaultArtifacts())

	custom := types.ArtifactsConfig{FunctionalTests: true}
	cfg.Artifacts = &custom
	assert.Equal(t, custom, cfg.DefaultArtifacts())
}
