package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"github.com/Polyrhythm-Inc/message-aggregator-sub000/pkg/models"
)

// Config application configuration
type Config struct {
	// Gmail
	CredentialsPath    string        `env:"GMAIL_CREDENTIALS_PATH" envDefault:"./credentials.json"`
	AccountsFile       string        `env:"ACCOUNTS_FILE" envDefault:"./accounts.json"`
	GmailQuery         string        `env:"GMAIL_QUERY" envDefault:"is:unread -in:draft"`
	DoneLabel          string        `env:"DONE_LABEL" envDefault:"done"`
	MaxMessagesPerPoll int64         `env:"MAX_MESSAGES_PER_POLL" envDefault:"10"`
	PollInterval       time.Duration `env:"POLL_INTERVAL" envDefault:"60s"`
	OAuthCallbackPort  int           `env:"OAUTH_CALLBACK_PORT" envDefault:"3333"`

	// Chat delivery
	ChatBackend    string `env:"CHAT_BACKEND" envDefault:"slack"` // "slack" or "telegram"
	SlackBotToken  string `env:"SLACK_BOT_TOKEN"`
	SlackChannelID string `env:"SLACK_CHANNEL_ID"`
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`

	// Formatting
	IncludeAccountHeader  bool `env:"INCLUDE_ACCOUNT_HEADER" envDefault:"true"`
	BodyMaxChars          int  `env:"BODY_MAX_CHARS" envDefault:"3000"`
	IncludeGmailPermalink bool `env:"INCLUDE_GMAIL_PERMALINK" envDefault:"true"`
	PostContinuations     bool `env:"POST_CONTINUATIONS" envDefault:"true"`

	// Attachments
	AttachmentsEnabled bool  `env:"ATTACHMENTS_ENABLED" envDefault:"true"`
	AttachmentMaxBytes int64 `env:"ATTACHMENT_MAX_BYTES" envDefault:"10485760"`

	// Storage
	DatabasePath  string `env:"DATABASE_PATH" envDefault:"./data/forwarder.db"`
	RetentionDays int    `env:"RETENTION_DAYS" envDefault:"30"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"

	// Accounts loaded from AccountsFile
	Accounts []models.Account `env:"-"`
}

// Load loads configuration from environment variables and the accounts file
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	accounts, err := LoadAccounts(cfg.AccountsFile)
	if err != nil {
		return nil, err
	}
	cfg.Accounts = accounts

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadAccounts reads the accounts file, a JSON array of account entries
func LoadAccounts(path string) ([]models.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file %s: %w", path, err)
	}

	var accounts []models.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file %s: %w", path, err)
	}
	return accounts, nil
}

// Validate checks invariants that the rest of the service relies on
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("accounts file %s lists no accounts", c.AccountsFile)
	}
	seen := make(map[string]bool, len(c.Accounts))
	for _, a := range c.Accounts {
		if a.ID == "" || a.TokenPath == "" {
			return fmt.Errorf("account entries need both id and tokenPath")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate account id %q", a.ID)
		}
		seen[a.ID] = true
	}

	switch c.ChatBackend {
	case "slack":
		if c.SlackBotToken == "" || c.SlackChannelID == "" {
			return fmt.Errorf("SLACK_BOT_TOKEN and SLACK_CHANNEL_ID are required for the slack backend")
		}
	case "telegram":
		if c.TelegramToken == "" || c.TelegramChatID == 0 {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required for the telegram backend")
		}
	default:
		return fmt.Errorf("unknown CHAT_BACKEND %q", c.ChatBackend)
	}

	if c.BodyMaxChars < 200 {
		return fmt.Errorf("BODY_MAX_CHARS must be at least 200, got %d", c.BodyMaxChars)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	if c.MaxMessagesPerPoll <= 0 {
		return fmt.Errorf("MAX_MESSAGES_PER_POLL must be positive, got %d", c.MaxMessagesPerPoll)
	}

	return nil
}
