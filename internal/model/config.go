package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nhle/swipemail/internal/gesture"
)

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig holds REST API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`

	// RateLimitRPS caps requests per second; 0 disables limiting.
	RateLimitRPS int `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`

	// RequestTimeout bounds each mutation against the store.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// MailConfig describes the IMAP account that feeds the inbox.
type MailConfig struct {
	// Provider selects a preset (gmail, outlook, yahoo, icloud). Host and
	// Port override the preset when set.
	Provider string `mapstructure:"provider" yaml:"provider"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Username string `mapstructure:"username" yaml:"username"`

	// Password is normally left empty and resolved from the environment
	// or the system keyring.
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	Mailbox        string `mapstructure:"mailbox" yaml:"mailbox"`
	ArchiveMailbox string `mapstructure:"archive_mailbox" yaml:"archive_mailbox"`

	// FetchLimit caps how many unseen messages one poll ingests.
	FetchLimit int `mapstructure:"fetch_limit" yaml:"fetch_limit"`

	// PollIntervalSec is how often (in seconds) to fetch new mail.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// MirrorActions replays archive/later decisions onto the mailbox.
	MirrorActions bool `mapstructure:"mirror_actions" yaml:"mirror_actions"`
}

// Configured reports whether enough is set to attempt a connection.
func (c MailConfig) Configured() bool {
	return c.Username != "" && (c.Host != "" || c.Provider != "")
}

// DisplayConfig holds UI preferences.
type DisplayConfig struct {
	// VisibleCards is how many cards of the stack are rendered.
	VisibleCards int `mapstructure:"visible_cards" yaml:"visible_cards"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File receives log output; the TUI always logs to a file.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Mail     MailConfig     `mapstructure:"mail" yaml:"mail"`
	Gesture  gesture.Config `mapstructure:"gesture" yaml:"gesture"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// configDir returns ~/.config/swipemail, falling back to the working
// directory when the home directory is unknown.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "swipemail")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/swipemail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		Database: DatabaseConfig{Path: filepath.Join(dir, "swipemail.db")},
		Server: ServerConfig{
			Addr:           "127.0.0.1:5000",
			RateLimitRPS:   20,
			RequestTimeout: 10 * time.Second,
		},
		Mail: MailConfig{
			Port:            993,
			TLS:             true,
			Mailbox:         "INBOX",
			FetchLimit:      20,
			PollIntervalSec: 120,
		},
		Gesture: gesture.DefaultConfig(),
		Display: DisplayConfig{VisibleCards: 3},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "swipemail.log"),
		},
	}
}

// setDefaults mirrors DefaultAppConfig into v so that missing keys and
// SWIPEMAIL_* environment variables resolve.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.rate_limit_rps", d.Server.RateLimitRPS)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("mail.provider", d.Mail.Provider)
	v.SetDefault("mail.host", d.Mail.Host)
	v.SetDefault("mail.port", d.Mail.Port)
	v.SetDefault("mail.tls", d.Mail.TLS)
	v.SetDefault("mail.username", d.Mail.Username)
	v.SetDefault("mail.password", d.Mail.Password)
	v.SetDefault("mail.mailbox", d.Mail.Mailbox)
	v.SetDefault("mail.archive_mailbox", d.Mail.ArchiveMailbox)
	v.SetDefault("mail.fetch_limit", d.Mail.FetchLimit)
	v.SetDefault("mail.poll_interval_sec", d.Mail.PollIntervalSec)
	v.SetDefault("mail.mirror_actions", d.Mail.MirrorActions)
	v.SetDefault("gesture.activation_threshold", d.Gesture.ActivationThreshold)
	v.SetDefault("gesture.commit_distance", d.Gesture.CommitDistance)
	v.SetDefault("gesture.commit_velocity", d.Gesture.CommitVelocity)
	v.SetDefault("gesture.soft_bound", d.Gesture.SoftBound)
	v.SetDefault("gesture.damping", d.Gesture.Damping)
	v.SetDefault("gesture.hard_bound", d.Gesture.HardBound)
	v.SetDefault("gesture.rotation_factor", d.Gesture.RotationFactor)
	v.SetDefault("gesture.max_rotation", d.Gesture.MaxRotation)
	v.SetDefault("display.visible_cards", d.Display.VisibleCards)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults (plus environment overrides) are
// returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SWIPEMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultAppConfig())

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Display.VisibleCards < 1 {
		cfg.Display.VisibleCards = 1
	}
	if cfg.Mail.PollIntervalSec <= 0 {
		cfg.Mail.PollIntervalSec = 120
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. The mail password is never
// written; it belongs in the keyring.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	mail := cfg.Mail
	mail.Password = ""

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("server", cfg.Server)
	v.Set("mail", mail)
	v.Set("gesture", cfg.Gesture)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
