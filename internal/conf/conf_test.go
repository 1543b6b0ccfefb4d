package conf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("PREFIX_STORE_DIR", "/tmp/prefixes")
	t.Setenv("PREFIX_ADMINS", "ou_a, ou_b,,")
	t.Setenv("MESSAGES_CONFIG_PATH", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "/tmp/prefixes", cfg.Store.Dir)
	assert.Equal(t, []string{"ou_a", "ou_b"}, cfg.Store.Admins)
	assert.True(t, cfg.Store.RequireOwner)
	assert.Equal(t, "/mtg", cfg.Commands.MeetingCommand)
	assert.Equal(t, "/reg-mtg-prefix", cfg.Commands.PrefixCommand)
	assert.Equal(t, 3*time.Second, cfg.Commands.GuestLookupTimeout)
	assert.Equal(t, 3, cfg.Commands.CalendarMaxAttempts)
	assert.Equal(t, 8, cfg.Worker.Count)
	assert.Equal(t, 64, cfg.Worker.QueueSize)
	require.NotNil(t, cfg.Messages)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("PREFIX_STORE_DRIVER", "sqlite")
	t.Setenv("PREFIX_DB_PATH", "/tmp/p.db")
	t.Setenv("PREFIX_REQUIRE_OWNER", "false")
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("GUEST_LOOKUP_TIMEOUT", "500ms")
	t.Setenv("DISPLAY_TIMEZONE", "Asia/Tokyo")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/p.db", cfg.Store.DBPath)
	assert.False(t, cfg.Store.RequireOwner)
	assert.Equal(t, 2, cfg.Worker.Count)
	assert.Equal(t, 500*time.Millisecond, cfg.Commands.GuestLookupTimeout)

	loc, err := cfg.Commands.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Store:    StoreConfig{Driver: "file"},
			Commands: CommandConfig{MeetingCommand: "/mtg", PrefixCommand: "/reg-mtg-prefix", GuestLookupTimeout: time.Second, CalendarMaxAttempts: 3, DisplayTimezone: "UTC"},
			Worker:   WorkerConfig{Count: 1, QueueSize: 1},
		}
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		field  string
		mutate func(c *Config)
	}{
		{"PREFIX_STORE_DRIVER", func(c *Config) { c.Store.Driver = "redis" }},
		{"MTG_COMMAND", func(c *Config) { c.Commands.MeetingCommand = "mtg" }},
		{"MTG_COMMAND/PREFIX_COMMAND", func(c *Config) { c.Commands.PrefixCommand = "/mtg" }},
		{"WORKER_COUNT", func(c *Config) { c.Worker.Count = 0 }},
		{"CALENDAR_MAX_ATTEMPTS", func(c *Config) { c.Commands.CalendarMaxAttempts = 0 }},
		{"DISPLAY_TIMEZONE", func(c *Config) { c.Commands.DisplayTimezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			var cfgErr *ConfigError
			require.True(t, errors.As(c.Validate(), &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	c := base()
	assert.Error(t, c.ValidateFeishu())
	c.Feishu = FeishuConfig{AppID: "cli_x", AppSecret: "secret"}
	assert.NoError(t, c.ValidateFeishu())
}

func TestLoadMessages_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prefix:\n  saved: \"Prefix set to {{prefix}}\"\n"), 0o644))

	m, err := LoadMessages(path)
	require.NoError(t, err)
	assert.Equal(t, "Prefix set to {{prefix}}", m.Prefix.Saved)
	assert.Equal(t, DefaultMessages().Prefix.Empty, m.Prefix.Empty)
	assert.Equal(t, DefaultMessages().Calendar.RateLimited, m.Calendar.RateLimited)
}

func TestLoadMessages_MissingExplicitPath(t *testing.T) {
	_, err := LoadMessages(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMessages_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prefix: [unclosed"), 0o644))

	_, err := LoadMessages(path)
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	got := Render("`{{token}}` is not valid, max {{max}}", map[string]string{"token": "abc", "max": "1440"})
	assert.Equal(t, "`abc` is not valid, max 1440", got)
}

func TestLoadMCPFromEnv(t *testing.T) {
	t.Setenv("MEETBOT_API_URL", "http://127.0.0.1:9000/")
	t.Setenv("MEETBOT_CHANNEL_ID", "oc_team")

	cfg, err := LoadMCPFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.APIURL)
	assert.Equal(t, "oc_team", cfg.ChannelID)
	assert.Equal(t, "/mtg", cfg.MeetingCommand)
}
