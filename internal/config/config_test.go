package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so the host environment does
// not leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ONE_XMLRPC", "ONE_AUTH_USER", "ONE_AUTH_PASS", "ONE_DOWNLOAD",
		"ONEIMAGE_ONE_ENDPOINT", "ONEIMAGE_ONE_USER", "ONEIMAGE_ONE_PASSWORD", "ONEIMAGE_ONE_DOWNLOAD_URL",
		"ONEIMAGE_HTTP_PORT", "ONEIMAGE_POLL_INTERVAL", "ONEIMAGE_LOG_LEVEL",
	} {
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatal(err)
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oneimage.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ONE.Endpoint != "http://localhost:2633/RPC2" {
		t.Errorf("Endpoint = %q", cfg.ONE.Endpoint)
	}
	if cfg.HTTP.Port != 8066 {
		t.Errorf("HTTP.Port = %d, want 8066", cfg.HTTP.Port)
	}
	if cfg.Poll.Interval != time.Second || cfg.Poll.ImageTimeout != 10*time.Minute {
		t.Errorf("Poll = %+v", cfg.Poll)
	}
	if !cfg.Journal.Enabled || !strings.HasSuffix(cfg.Journal.Path, filepath.Join(".oneimage", "journal.db")) {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
one:
  endpoint: http://one.example.com:2633/RPC2
  user: oneadmin
  password: secret
  download-url: http://one.example.com/download
http:
  host: 10.0.0.5
  port: 9000
poll:
  interval: 2s
  image-timeout: 30m
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ONE.Endpoint != "http://one.example.com:2633/RPC2" || cfg.ONE.User != "oneadmin" || cfg.ONE.Password != "secret" {
		t.Errorf("ONE = %+v", cfg.ONE)
	}
	if cfg.ONE.DownloadURL != "http://one.example.com/download" {
		t.Errorf("DownloadURL = %q", cfg.ONE.DownloadURL)
	}
	if cfg.HTTP.Host != "10.0.0.5" || cfg.HTTP.Port != 9000 {
		t.Errorf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Poll.Interval != 2*time.Second || cfg.Poll.ImageTimeout != 30*time.Minute {
		t.Errorf("Poll = %+v", cfg.Poll)
	}
	if cfg.Poll.VMTimeout != 5*time.Minute {
		t.Errorf("unset VMTimeout should keep its default, got %v", cfg.Poll.VMTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoad_OpenNebulaEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("ONE_XMLRPC", "http://env.example.com:2633/RPC2")
	t.Setenv("ONE_AUTH_USER", "envuser")
	t.Setenv("ONE_AUTH_PASS", "envpass")
	t.Setenv("ONE_DOWNLOAD", "http://env.example.com/download")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ONE.Endpoint != "http://env.example.com:2633/RPC2" {
		t.Errorf("Endpoint = %q", cfg.ONE.Endpoint)
	}
	if cfg.ONE.User != "envuser" || cfg.ONE.Password != "envpass" {
		t.Errorf("credentials = %q/%q", cfg.ONE.User, cfg.ONE.Password)
	}
	if cfg.ONE.DownloadURL != "http://env.example.com/download" {
		t.Errorf("DownloadURL = %q", cfg.ONE.DownloadURL)
	}
}

func TestLoad_PrefixedEnvWinsOverAlias(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("ONE_AUTH_USER", "alias")
	t.Setenv("ONEIMAGE_ONE_USER", "prefixed")
	t.Setenv("ONEIMAGE_HTTP_PORT", "9100")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ONE.User != "prefixed" {
		t.Errorf("User = %q, want prefixed", cfg.ONE.User)
	}
	if cfg.HTTP.Port != 9100 {
		t.Errorf("HTTP.Port = %d, want 9100", cfg.HTTP.Port)
	}
}

func validConfig() *Config {
	return &Config{
		ONE:     ONEConfig{Endpoint: "http://one:2633/RPC2", User: "oneadmin"},
		HTTP:    HTTPConfig{Port: 8066},
		Poll:    PollConfig{Interval: time.Second, ImageTimeout: time.Minute, VMTimeout: time.Minute, DeleteTimeout: time.Minute},
		Journal: JournalConfig{Enabled: true, Path: "/tmp/journal.db"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no endpoint", func(c *Config) { c.ONE.Endpoint = "" }, "one.endpoint"},
		{"no user", func(c *Config) { c.ONE.User = "" }, "one.user"},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"zero interval", func(c *Config) { c.Poll.Interval = 0 }, "poll.interval"},
		{"zero timeout", func(c *Config) { c.Poll.DeleteTimeout = 0 }, "timeouts"},
		{"journal without path", func(c *Config) { c.Journal.Path = "" }, "journal.path"},
		{"journal disabled without path", func(c *Config) { c.Journal = JournalConfig{} }, ""},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown", "image_name", "base")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"image_name":"base"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
