package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "pmprep.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.Gateway.Provider)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, 6, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, int64(8192), cfg.Pipeline.MaxTokens)
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
	assert.Equal(t, 5, cfg.Pipeline.FetchConcurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.Pace)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/pmprep
log:
  level: debug
  format: console
server:
  port: 9090
pipeline:
  batch_size: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Pipeline.BatchSize)
	// Defaults still apply for unset values
	assert.Equal(t, 6, cfg.Pipeline.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PMPREP_STORE_DRIVER", "sqlite")
	t.Setenv("PMPREP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PMPREP_SERVER_PORT", "3000")
	t.Setenv("PMPREP_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestGatewaySettings(t *testing.T) {
	cfg := &Config{}
	cfg.Gateway.Provider = "perplexity"
	cfg.Perplexity.Key = "pplx-key"
	cfg.Perplexity.Model = "sonar-pro"
	cfg.Perplexity.BaseURL = "https://api.perplexity.ai"

	provider, key, model, baseURL, err := cfg.GatewaySettings()
	require.NoError(t, err)
	assert.Equal(t, "perplexity", provider)
	assert.Equal(t, "pplx-key", key)
	assert.Equal(t, "sonar-pro", model)
	assert.Equal(t, "https://api.perplexity.ai", baseURL)
}

func TestGatewaySettings_UnknownProvider(t *testing.T) {
	cfg := &Config{}
	cfg.Gateway.Provider = "mystery"

	_, _, _, _, err := cfg.GatewaySettings()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
