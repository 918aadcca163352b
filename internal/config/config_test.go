package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"
  public_url: "https://outreach.example.com"

openai:
  chat_model: "gpt-4"
  embedding_model: "text-embedding-3-small"

sending:
  daily_send_limit: 250
  max_spam_score: 4.5
  respect_business_hours: false

budget:
  daily_limit_usd: 50.0

followup:
  days_since_send: 5
  max_followups: 2
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "https://outreach.example.com", cfg.Server.PublicURL)

	assert.Equal(t, "gpt-4", cfg.OpenAI.ChatModel)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)

	assert.Equal(t, 250, cfg.Sending.DailySendLimit)
	assert.Equal(t, 4.5, cfg.Sending.MaxSpamScore)
	assert.False(t, cfg.Sending.RespectBusinessHours)

	assert.Equal(t, 50.0, cfg.Budget.DailyLimitUSD)
	assert.Equal(t, 5, cfg.Followup.DaysSinceSend)
	assert.Equal(t, 2, cfg.Followup.MaxFollowups)
}

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Sending.DailySendLimit)
	assert.Equal(t, 5.0, cfg.Sending.MaxSpamScore)
	assert.True(t, cfg.Sending.RespectBusinessHours)
	assert.Equal(t, 100.0, cfg.Budget.DailyLimitUSD)
	assert.Equal(t, 7, cfg.Followup.DaysSinceSend)
	assert.Equal(t, 3, cfg.Followup.MaxFollowups)
	assert.Equal(t, "gpt-4-turbo-preview", cfg.OpenAI.ChatModel)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DAILY_BUDGET_LIMIT", "12.5")
	t.Setenv("DAILY_SEND_LIMIT", "42")
	t.Setenv("RESPECT_BUSINESS_HOURS", "false")
	t.Setenv("OPENAI_MODEL_GPT", "gpt-4o")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)

	assert.Equal(t, 12.5, cfg.Budget.DailyLimitUSD)
	assert.Equal(t, 42, cfg.Sending.DailySendLimit)
	assert.False(t, cfg.Sending.RespectBusinessHours)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.ChatModel)
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	cfg.Sending.MaxSpamScore = 12.0
	assert.Error(t, cfg.Validate())

	cfg = defaults()
	cfg.Sending.DailySendLimit = 0
	assert.Error(t, cfg.Validate())

	cfg = defaults()
	assert.NoError(t, cfg.Validate())
}
