// Package config provides YAML-based configuration loading for obras.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Document backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// Config is the top-level configuration, loaded from obras.yaml.
type Config struct {
	Document  DocumentConfig    `yaml:"document"`
	Firmantes map[string]string `yaml:"firmantes"`
	Backup    BackupConfig      `yaml:"backup"`
	Notify    NotifyConfig      `yaml:"notify"`
	Dashboard DashboardConfig   `yaml:"dashboard"`
}

// DocumentConfig says where the contract document lives.
type DocumentConfig struct {
	Backend  string `yaml:"backend"`  // file, sqlite, mysql
	Path     string `yaml:"path"`     // JSON file (file) or database file (sqlite)
	Key      string `yaml:"key"`      // row key for the SQL backends
	Host     string `yaml:"host"`     // mysql
	Port     int    `yaml:"port"`     // mysql
	Database string `yaml:"database"` // mysql
}

// BackupConfig controls scheduled document snapshots.
type BackupConfig struct {
	Schedule string   `yaml:"schedule"` // 5-field cron expression; empty disables the scheduler
	Dir      string   `yaml:"dir"`
	Keep     int      `yaml:"keep"`
	S3       S3Config `yaml:"s3"`
}

// S3Config configures the optional S3 (or MinIO) backup sink.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// NotifyConfig holds the chat channels phase events are posted to.
type NotifyConfig struct {
	Slack   ChannelConfig `yaml:"slack"`
	Discord ChannelConfig `yaml:"discord"`
}

// ChannelConfig is a bot token plus the channel to post to.
type ChannelConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// Enabled reports whether the channel is configured.
func (c ChannelConfig) Enabled() bool { return c.BotToken != "" }

// DashboardConfig configures the local HTTP view.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// DefaultFirmantes is the signer block written into a freshly synthesized document.
var DefaultFirmantes = map[string]string{
	"jefeServicio":        "",
	"responsableContrato": "",
	"directorObra":        "",
}

// Default returns the configuration used by `obras init`.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadEnv loads KEY=value pairs from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load env %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references and unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	return data, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Document.Backend == "" {
		c.Document.Backend = BackendFile
	}
	if c.Document.Path == "" {
		switch c.Document.Backend {
		case BackendSQLite:
			c.Document.Path = "obras.db"
		default:
			c.Document.Path = "obras.json"
		}
	}
	if c.Document.Key == "" {
		c.Document.Key = "default"
	}
	if c.Document.Backend == BackendMySQL {
		if c.Document.Host == "" {
			c.Document.Host = "127.0.0.1"
		}
		if c.Document.Port == 0 {
			c.Document.Port = 3306
		}
		if c.Document.Database == "" {
			c.Document.Database = "obras"
		}
	}
	if len(c.Firmantes) == 0 {
		c.Firmantes = make(map[string]string, len(DefaultFirmantes))
		for k, v := range DefaultFirmantes {
			c.Firmantes[k] = v
		}
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "backups"
	}
	if c.Backup.Keep == 0 {
		c.Backup.Keep = 10
	}
	if c.Backup.S3.Bucket != "" && c.Backup.S3.Prefix == "" {
		c.Backup.S3.Prefix = "obras/"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Document.Backend {
	case BackendFile, BackendSQLite, BackendMySQL:
	default:
		errs = append(errs, fmt.Sprintf("document.backend %q is not one of file, sqlite, mysql", c.Document.Backend))
	}
	if c.Document.Port < 0 || c.Document.Port > 65535 {
		errs = append(errs, fmt.Sprintf("document.port %d is out of range", c.Document.Port))
	}
	if c.Backup.Keep < 0 {
		errs = append(errs, "backup.keep must not be negative")
	}
	if c.Backup.S3.Endpoint != "" && c.Backup.S3.Bucket == "" {
		errs = append(errs, "backup.s3.bucket is required when an endpoint is set")
	}
	if c.Notify.Slack.Enabled() && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required")
	}
	if c.Notify.Discord.Enabled() && c.Notify.Discord.Channel == "" {
		errs = append(errs, "notify.discord.channel is required")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d is out of range", c.Dashboard.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
