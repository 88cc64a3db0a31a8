package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inEmptyDir runs the test from a directory without a .env file.
func inEmptyDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	inEmptyDir(t)
	t.Setenv("MODELSCOPE_API_KEY", "ms-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api-inference.modelscope.cn/", cfg.ModelScopeBaseURL)
	assert.Equal(t, ProviderModelScope, cfg.Text.Provider)
	assert.Equal(t, "deepseek-ai/DeepSeek-R1-Distill-Qwen-32B", cfg.Text.Model)
	assert.Equal(t, 0.7, cfg.Text.Temperature)
	assert.Equal(t, 1024, cfg.Text.MaxTokens)
	assert.Equal(t, 3, cfg.Text.MaxRetries)
	assert.Equal(t, time.Second, cfg.Text.RetryDelay)

	assert.Equal(t, "Qwen/Qwen-Image", cfg.Image.Model)
	assert.Equal(t, 1024, cfg.Image.Width)
	assert.Equal(t, 768, cfg.Image.Height)
	assert.Equal(t, 50, cfg.Image.Steps)
	assert.Equal(t, 7.5, cfg.Image.GuidanceScale)
	assert.Equal(t, 3, cfg.Image.MaxTaskRetries)
	assert.Equal(t, 40, cfg.Image.MaxPollingRetries)
	assert.Equal(t, 2*time.Second, cfg.Image.PollMinDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Image.PollStep)
	assert.Equal(t, 15*time.Second, cfg.Image.PollMaxDelay)
	assert.Equal(t, 5*time.Second, cfg.Image.PollTimeoutDelay)
	assert.Equal(t, 3*time.Second, cfg.Image.TaskRetryDelay)

	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.DownloadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.StreamTimeout)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, StoreFile, cfg.AssetStore)
	assert.Equal(t, 168*time.Hour, cfg.PruneMaxAge)
	assert.Equal(t, 5432, cfg.DB.Port)
}

func TestLoad_DotEnv(t *testing.T) {
	inEmptyDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("MODELSCOPE_API_KEY=from-file\nTEXT_MAX_RETRIES=5\n"), 0o600))
	t.Setenv("MODELSCOPE_API_KEY", "")
	t.Setenv("TEXT_MAX_RETRIES", "")
	os.Unsetenv("MODELSCOPE_API_KEY")
	os.Unsetenv("TEXT_MAX_RETRIES")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.ModelScopeAPIKey)
	assert.Equal(t, 5, cfg.Text.MaxRetries)
}

func TestLoad_Overrides(t *testing.T) {
	inEmptyDir(t)
	t.Setenv("TEXT_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("IMAGE_PROVIDER", "fusionbrain")
	t.Setenv("FUSION_BRAIN_API_KEY", "fb-key")
	t.Setenv("FUSION_BRAIN_SECRET_KEY", "fb-secret")
	t.Setenv("POLL_MAX_DELAY_MS", "800")
	t.Setenv("IMAGE_GUIDANCE", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.Text.Provider)
	assert.Equal(t, ProviderFusionBrain, cfg.Image.Provider)
	assert.Equal(t, 800*time.Millisecond, cfg.Image.PollMaxDelay)
	assert.Equal(t, 4.0, cfg.Image.GuidanceScale)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing modelscope key", map[string]string{}, "MODELSCOPE_API_KEY is required"},
		{"missing gemini key", map[string]string{"TEXT_PROVIDER": "gemini", "IMAGE_PROVIDER": "fusionbrain", "FUSION_BRAIN_API_KEY": "k", "FUSION_BRAIN_SECRET_KEY": "s"}, "GEMINI_API_KEY is required"},
		{"missing fusionbrain secret", map[string]string{"MODELSCOPE_API_KEY": "k", "IMAGE_PROVIDER": "fusionbrain", "FUSION_BRAIN_API_KEY": "k"}, "FUSION_BRAIN_SECRET_KEY is required"},
		{"unknown provider", map[string]string{"MODELSCOPE_API_KEY": "k", "TEXT_PROVIDER": "other"}, `unknown TEXT_PROVIDER "other"`},
		{"bad integer", map[string]string{"MODELSCOPE_API_KEY": "k", "MAX_TOKENS": "many"}, `invalid MAX_TOKENS "many"`},
		{"postgres without host", map[string]string{"MODELSCOPE_API_KEY": "k", "ASSET_STORE": "postgres"}, "DB_HOST is required"},
		{"zero polling", map[string]string{"MODELSCOPE_API_KEY": "k", "IMAGE_MAX_POLLING_RETRIES": "0"}, "IMAGE_MAX_POLLING_RETRIES must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inEmptyDir(t)
			for _, k := range []string{"MODELSCOPE_API_KEY", "GEMINI_API_KEY", "FUSION_BRAIN_API_KEY", "FUSION_BRAIN_SECRET_KEY", "TEXT_PROVIDER", "IMAGE_PROVIDER", "DB_HOST"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{DB: DBConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "poems", SSLMode: "disable"}}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=poems sslmode=disable", cfg.GetDSN())
}
