// Package config loads oneimage settings from defaults, an optional YAML
// file and the environment.
//
// Every key can be set with an ONEIMAGE_ variable, e.g. one.endpoint as
// ONEIMAGE_ONE_ENDPOINT. The standard OpenNebula variables ONE_XMLRPC,
// ONE_AUTH_USER, ONE_AUTH_PASS and ONE_DOWNLOAD are honored as well.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	ONE     ONEConfig     `mapstructure:"one"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Poll    PollConfig    `mapstructure:"poll"`
	Journal JournalConfig `mapstructure:"journal"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`

	// CacheDir receives downloads that have no explicit destination.
	CacheDir string `mapstructure:"cache-dir"`
}

// ONEConfig is the OpenNebula connection.
type ONEConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	// DownloadURL overrides the download base of every image.
	DownloadURL string `mapstructure:"download-url"`
}

// HTTPConfig is the file server used for local uploads.
type HTTPConfig struct {
	// Host is the address OpenNebula uses to reach this machine.
	Host string `mapstructure:"host"`
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

// PollConfig bounds the waits for asynchronous remote changes.
type PollConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	ImageTimeout  time.Duration `mapstructure:"image-timeout"`
	VMTimeout     time.Duration `mapstructure:"vm-timeout"`
	DeleteTimeout time.Duration `mapstructure:"delete-timeout"`
}

// JournalConfig is the local action history.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is written after every run when set.
	Textfile string `mapstructure:"textfile"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var envReplacer = strings.NewReplacer(".", "_", "-", "_")

// envAliases are the OpenNebula CLI variables accepted for a key, after
// the ONEIMAGE_ form.
var envAliases = map[string]string{
	"one.endpoint":     "ONE_XMLRPC",
	"one.user":         "ONE_AUTH_USER",
	"one.password":     "ONE_AUTH_PASS",
	"one.download-url": "ONE_DOWNLOAD",
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	v.SetDefault("one.endpoint", "http://localhost:2633/RPC2")
	v.SetDefault("one.user", "")
	v.SetDefault("one.password", "")
	v.SetDefault("one.download-url", "")
	v.SetDefault("http.host", "")
	v.SetDefault("http.bind", "")
	v.SetDefault("http.port", 8066)
	v.SetDefault("poll.interval", time.Second)
	v.SetDefault("poll.image-timeout", 10*time.Minute)
	v.SetDefault("poll.vm-timeout", 5*time.Minute)
	v.SetDefault("poll.delete-timeout", 5*time.Minute)
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", filepath.Join(home, ".oneimage", "journal.db"))
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("cache-dir", filepath.Join(os.TempDir(), "oneimage"))
}

// Load reads configuration from defaults, the config file and the
// environment. An empty file searches for oneimage.yaml in the working
// directory and $HOME/.oneimage, and a missing file there is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ONEIMAGE")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := "ONEIMAGE_" + strings.ToUpper(envReplacer.Replace(key))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("oneimage")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.oneimage")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.ONE.Endpoint == "" {
		return fmt.Errorf("one.endpoint cannot be empty")
	}
	if c.ONE.User == "" {
		return fmt.Errorf("one.user cannot be empty (set ONE_AUTH_USER)")
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if c.Poll.ImageTimeout <= 0 || c.Poll.VMTimeout <= 0 || c.Poll.DeleteTimeout <= 0 {
		return fmt.Errorf("poll timeouts must be positive")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path cannot be empty when the journal is enabled")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q is invalid: %w", s, err)
	}
	return level, nil
}

// NewLogger builds the logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
