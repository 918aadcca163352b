package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the outreach engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Bedrock    BedrockConfig    `yaml:"bedrock"`
	Gmail      GmailConfig      `yaml:"gmail"`
	SES        SESConfig        `yaml:"ses"`
	Sender     SenderConfig     `yaml:"sender"`
	Sending    SendingConfig    `yaml:"sending"`
	Budget     BudgetConfig     `yaml:"budget"`
	Followup   FollowupConfig   `yaml:"followup"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	LogLevel   string           `yaml:"log_level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	PublicURL    string `yaml:"public_url"` // base for unsubscribe links
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	port := s.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", s.Host, port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the optional Redis connection used for distributed
// send locking. When URL is empty the engine falls back to Postgres
// advisory locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// OpenAIConfig holds the OpenAI model-provider settings.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	ChatModel      string `yaml:"chat_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// BedrockConfig holds the AWS Bedrock model-provider settings. Used when
// enabled instead of the OpenAI adapter.
type BedrockConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	ModelID   string `yaml:"model_id"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// GmailConfig holds Gmail API transport credentials (refresh-token flow).
type GmailConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	SenderEmail  string `yaml:"sender_email"`
}

// SESConfig holds the AWS SES transport settings.
type SESConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	FromEmail string `yaml:"from_email"`
}

// SenderConfig holds the outgoing identity stamped on every draft.
type SenderConfig struct {
	FromEmail string `yaml:"from_email"`
	Name      string `yaml:"name"`
	Company   string `yaml:"company"`
}

// SendingConfig holds the send-time guardrail knobs.
type SendingConfig struct {
	DailySendLimit       int     `yaml:"daily_send_limit"`
	MaxSpamScore         float64 `yaml:"max_spam_score"`
	RespectBusinessHours bool    `yaml:"respect_business_hours"`
	MockMode             bool    `yaml:"mock_mode"`
	SendTimeoutSeconds   int     `yaml:"send_timeout_seconds"`
}

// BudgetConfig holds the daily model-provider spend ceiling.
type BudgetConfig struct {
	DailyLimitUSD float64 `yaml:"daily_limit_usd"`
}

// FollowupConfig holds the follow-up eligibility defaults.
type FollowupConfig struct {
	DaysSinceSend int `yaml:"days_since_send"`
	MaxFollowups  int `yaml:"max_followups"`
}

// EnrichmentConfig holds enrichment retry settings.
type EnrichmentConfig struct {
	MaxRetries     int `yaml:"max_retries"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// LoadFromEnv loads configuration from a YAML file (if present), a .env file
// (if present), and environment-variable overrides, in that order. Env vars
// win so that deploy-time secrets never live in the YAML.
func LoadFromEnv(path string) (*Config, error) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ReadTimeout: 60, WriteTimeout: 60, PublicURL: "http://localhost:8080"},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30,
		},
		OpenAI: OpenAIConfig{
			ChatModel:      "gpt-4-turbo-preview",
			EmbeddingModel: "text-embedding-3-large",
			TimeoutSeconds: 60,
		},
		Bedrock: BedrockConfig{Region: "us-east-1", ModelID: "anthropic.claude-3-sonnet-20240229-v1:0"},
		SES:     SESConfig{Region: "us-east-1"},
		Sending: SendingConfig{
			DailySendLimit:       500,
			MaxSpamScore:         5.0,
			RespectBusinessHours: true,
			SendTimeoutSeconds:   30,
		},
		Budget:     BudgetConfig{DailyLimitUSD: 100.0},
		Followup:   FollowupConfig{DaysSinceSend: 7, MaxFollowups: 3},
		Enrichment: EnrichmentConfig{MaxRetries: 3, TimeoutSeconds: 60},
		LogLevel:   "INFO",
	}
}

func applyEnvOverrides(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(dst *float64, key string) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	setBool := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setStr(&cfg.OpenAI.ChatModel, "OPENAI_MODEL_GPT")
	setStr(&cfg.OpenAI.EmbeddingModel, "OPENAI_MODEL_EMBEDDING")
	setStr(&cfg.Gmail.ClientID, "GMAIL_CLIENT_ID")
	setStr(&cfg.Gmail.ClientSecret, "GMAIL_CLIENT_SECRET")
	setStr(&cfg.Gmail.RefreshToken, "GMAIL_REFRESH_TOKEN")
	setStr(&cfg.Gmail.SenderEmail, "GMAIL_SENDER_EMAIL")
	setStr(&cfg.Sender.FromEmail, "SENDER_EMAIL")
	setStr(&cfg.Sender.Name, "SENDER_NAME")
	setStr(&cfg.Sender.Company, "SENDER_COMPANY")
	setFloat(&cfg.Budget.DailyLimitUSD, "DAILY_BUDGET_LIMIT")
	setInt(&cfg.Sending.DailySendLimit, "DAILY_SEND_LIMIT")
	setFloat(&cfg.Sending.MaxSpamScore, "MAX_SPAM_SCORE")
	setBool(&cfg.Sending.RespectBusinessHours, "RESPECT_BUSINESS_HOURS")
	setBool(&cfg.Sending.MockMode, "MOCK_MODE")
	setInt(&cfg.Followup.DaysSinceSend, "FOLLOWUP_DAYS")
	setInt(&cfg.Followup.MaxFollowups, "MAX_FOLLOWUPS")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Sending.DailySendLimit <= 0 {
		return fmt.Errorf("sending.daily_send_limit must be positive, got %d", c.Sending.DailySendLimit)
	}
	if c.Budget.DailyLimitUSD < 0 {
		return fmt.Errorf("budget.daily_limit_usd must not be negative, got %f", c.Budget.DailyLimitUSD)
	}
	if c.Sending.MaxSpamScore < 0 || c.Sending.MaxSpamScore > 10 {
		return fmt.Errorf("sending.max_spam_score must be in [0,10], got %f", c.Sending.MaxSpamScore)
	}
	if c.Followup.MaxFollowups < 0 {
		return fmt.Errorf("followup.max_followups must not be negative, got %d", c.Followup.MaxFollowups)
	}
	return nil
}

// SendTimeout returns the transport call deadline.
func (c *Config) SendTimeout() time.Duration {
	s := c.Sending.SendTimeoutSeconds
	if s <= 0 {
		s = 30
	}
	return time.Duration(s) * time.Second
}

// EnrichmentTimeout returns the model-provider call deadline for enrichment.
func (c *Config) EnrichmentTimeout() time.Duration {
	s := c.Enrichment.TimeoutSeconds
	if s <= 0 {
		s = 60
	}
	return time.Duration(s) * time.Second
}
