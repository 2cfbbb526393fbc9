package config

import (
	"errors"
	"fmt"
	"strings"

	"modwatch/pkg/logx"
)

// Config is the whole modwatch configuration file (JSON or YAML).
type Config struct {
	Twitch  TwitchConfig   `json:"twitch"`
	Chat    ChatConfig     `json:"chat"`
	PubSub  PubSubConfig   `json:"pubsub"`
	Export  ExportConfig   `json:"export"`
	Filters FiltersConfig  `json:"filters"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Logging LoggingConfig  `json:"logging"`
}

// TwitchConfig carries API credentials. The token is the OAuth user token
// used for both Helix calls and the PubSub LISTEN handshake.
type TwitchConfig struct {
	ClientID string `json:"client_id"`
	Token    string `json:"token"`

	// Login is the account the tool acts as; its user ID anchors blocklist
	// calls and moderator-action topics.
	Login string `json:"login"`

	// APIBaseURL overrides the Helix endpoint, for testing. Empty means the
	// public API.
	APIBaseURL string `json:"api_base_url,omitempty"`
}

type ChatConfig struct {
	// Channels whose chats are watched for filter matches and whose
	// moderator actions are subscribed to.
	Channels []string `json:"channels"`

	// CommandInterval is the pause between consecutive ban/unban commands
	// in a bulk run, as a Go duration string. The platform drops
	// connections that issue commands faster; keep this at or above the
	// default unless the account has elevated limits.
	CommandInterval string `json:"command_interval,omitempty"`
}

type PubSubConfig struct {
	Enabled bool `json:"enabled"`

	// URL overrides the PubSub edge endpoint, for testing.
	URL string `json:"url,omitempty"`
}

type ExportConfig struct {
	// Dir receives the per-day CSV ledgers.
	Dir string `json:"dir"`

	// AutoAll / AutoBans enable scheduled exports of the respective ledger.
	AutoAll  bool `json:"auto_all,omitempty"`
	AutoBans bool `json:"auto_bans,omitempty"`

	// Schedule is a cron expression for the auto exports.
	// Defaults to hourly.
	Schedule string `json:"schedule,omitempty"`
}

type FiltersConfig struct {
	// Path of the YAML chat-filter rules file.
	Path string `json:"path,omitempty"`
}

type StorageConfig struct {
	// Driver: "file" (JSON Lines), "sqlite" (requires the sqlite build
	// tag), or ""/"none" to disable the action history store.
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`

	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console,omitempty"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Logx maps the logging block onto the logx service config.
func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}

const (
	DefaultExportDir       = "./exports"
	DefaultFiltersPath     = "./data/chat_filters.yaml"
	DefaultExportSchedule  = "0 * * * *"
	DefaultCommandInterval = "350ms"
)

// Validate checks the parts of the config that must be right before anything
// starts. It does not mutate; call Normalize for defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Twitch.ClientID) == "" {
		return errors.New("twitch.client_id is required")
	}
	if strings.TrimSpace(c.Twitch.Token) == "" {
		return errors.New("twitch.token is required")
	}
	if strings.TrimSpace(c.Twitch.Login) == "" {
		return errors.New("twitch.login is required")
	}
	if _, err := ParseDurationOrDefault("chat.command_interval", c.Chat.CommandInterval, 0); err != nil {
		return err
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
		}
	}
	for i, ch := range c.Chat.Channels {
		if strings.TrimSpace(ch) == "" {
			return fmt.Errorf("chat.channels[%d] is empty", i)
		}
	}
	return nil
}

// Normalize fills defaults in place.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Export.Dir) == "" {
		c.Export.Dir = DefaultExportDir
	}
	if strings.TrimSpace(c.Export.Schedule) == "" {
		c.Export.Schedule = DefaultExportSchedule
	}
	if strings.TrimSpace(c.Filters.Path) == "" {
		c.Filters.Path = DefaultFiltersPath
	}
	if strings.TrimSpace(c.Chat.CommandInterval) == "" {
		c.Chat.CommandInterval = DefaultCommandInterval
	}
	for i := range c.Chat.Channels {
		c.Chat.Channels[i] = strings.ToLower(strings.TrimSpace(c.Chat.Channels[i]))
	}
	c.Twitch.Login = strings.ToLower(strings.TrimSpace(c.Twitch.Login))
}
