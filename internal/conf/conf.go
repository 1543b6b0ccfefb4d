package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig `envPrefix:"FEISHU_"`

	// Prefix store configuration
	Store StoreConfig `envPrefix:"PREFIX_"`

	// Command handling configuration
	Commands CommandConfig

	// Worker pool configuration
	Worker WorkerConfig `envPrefix:"WORKER_"`

	// Admin HTTP API
	APIPort int `env:"API_PORT" envDefault:"8080"`

	// Message catalogue path (YAML)
	MessagesPath string `env:"MESSAGES_CONFIG_PATH"`

	// Messages loaded from MessagesPath
	Messages *Messages

	// Logging
	Env      string `env:"GO_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string `env:"APP_ID"`
	AppSecret string `env:"APP_SECRET"`
}

// StoreConfig contains prefix store and prefix permission configuration
type StoreConfig struct {
	Driver       string   `env:"STORE_DRIVER" envDefault:"file"`
	Dir          string   `env:"STORE_DIR"`
	DBPath       string   `env:"DB_PATH"`
	Admins       []string `env:"ADMINS" envSeparator:","`
	RequireOwner bool     `env:"REQUIRE_OWNER" envDefault:"true"`
}

// CommandConfig contains command names and meeting settings
type CommandConfig struct {
	MeetingCommand      string        `env:"MTG_COMMAND" envDefault:"/mtg"`
	PrefixCommand       string        `env:"PREFIX_COMMAND" envDefault:"/reg-mtg-prefix"`
	WorkspaceDomain     string        `env:"WORKSPACE_DOMAIN"`
	GuestLookupTimeout  time.Duration `env:"GUEST_LOOKUP_TIMEOUT" envDefault:"3s"`
	CalendarMaxAttempts int           `env:"CALENDAR_MAX_ATTEMPTS" envDefault:"3"`
	DisplayTimezone     string        `env:"DISPLAY_TIMEZONE" envDefault:"Local"`
}

// WorkerConfig contains worker pool sizing
type WorkerConfig struct {
	Count     int `env:"COUNT" envDefault:"8"`
	QueueSize int `env:"QUEUE_SIZE" envDefault:"64"`
}

// LoadFromEnv loads .env (when present) and then configuration from environment variables
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Prefix store directory
	if cfg.Store.Dir == "" {
		homeDir, _ := os.UserHomeDir()
		cfg.Store.Dir = filepath.Join(homeDir, ".feishu-meet-bot", "prefixes")
	}
	cfg.Store.Admins = trimAll(cfg.Store.Admins)

	messages, err := LoadMessages(cfg.MessagesPath)
	if err != nil {
		return nil, err
	}
	cfg.Messages = messages

	return &cfg, nil
}

// Location returns the display timezone
func (c *CommandConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.DisplayTimezone)
}

// Validate validates the configuration
// Feishu credentials are only required by the bot itself, so they are checked separately.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "file", "sqlite":
	default:
		return &ConfigError{Field: "PREFIX_STORE_DRIVER", Message: "must be file or sqlite"}
	}
	if !strings.HasPrefix(c.Commands.MeetingCommand, "/") {
		return &ConfigError{Field: "MTG_COMMAND", Message: "must start with /"}
	}
	if !strings.HasPrefix(c.Commands.PrefixCommand, "/") {
		return &ConfigError{Field: "PREFIX_COMMAND", Message: "must start with /"}
	}
	if c.Commands.MeetingCommand == c.Commands.PrefixCommand {
		return &ConfigError{Field: "MTG_COMMAND/PREFIX_COMMAND", Message: "must differ"}
	}
	if c.Worker.Count <= 0 {
		return &ConfigError{Field: "WORKER_COUNT", Message: "must be positive"}
	}
	if c.Worker.QueueSize < 0 {
		return &ConfigError{Field: "WORKER_QUEUE_SIZE", Message: "must not be negative"}
	}
	if c.Commands.GuestLookupTimeout <= 0 {
		return &ConfigError{Field: "GUEST_LOOKUP_TIMEOUT", Message: "must be positive"}
	}
	if c.Commands.CalendarMaxAttempts <= 0 {
		return &ConfigError{Field: "CALENDAR_MAX_ATTEMPTS", Message: "must be positive"}
	}
	if _, err := c.Commands.Location(); err != nil {
		return &ConfigError{Field: "DISPLAY_TIMEZONE", Message: err.Error()}
	}
	return nil
}

// ValidateFeishu checks the credentials needed to talk to Feishu
func (c *Config) ValidateFeishu() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// MCPConfig configures the meeting-mcp tool server
type MCPConfig struct {
	APIURL         string `env:"MEETBOT_API_URL" envDefault:"http://127.0.0.1:8080"`
	ChannelID      string `env:"MEETBOT_CHANNEL_ID"`
	RequesterID    string `env:"MEETBOT_REQUESTER_ID"`
	MeetingCommand string `env:"MTG_COMMAND" envDefault:"/mtg"`
	PrefixCommand  string `env:"PREFIX_COMMAND" envDefault:"/reg-mtg-prefix"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadMCPFromEnv loads .env (when present) and then the tool server configuration
func LoadMCPFromEnv() (*MCPConfig, error) {
	_ = godotenv.Load()

	var cfg MCPConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &cfg, nil
}
