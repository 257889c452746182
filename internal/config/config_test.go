package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"

	"pagesmith/pkg/editor"
)

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() with empty path error = %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Editor.AutosaveDelay != time.Second {
		t.Errorf("AutosaveDelay = %v, want 1s", cfg.Editor.AutosaveDelay)
	}
	if cfg.Generator.Model != "gemini-2.0-flash" {
		t.Errorf("Model = %q", cfg.Generator.Model)
	}
}

func TestLoad_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagesmith.yaml")
	content := `version: 1
editor:
  autosave: false
  autosave_delay: 250ms
  overlay:
    selected_outline: 3px solid red
server:
  port: 8080
  rate_limit: 10
  rate_window: 1m
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Editor.Autosave {
		t.Error("expected autosave disabled")
	}
	if cfg.Editor.AutosaveDelay != 250*time.Millisecond {
		t.Errorf("AutosaveDelay = %v", cfg.Editor.AutosaveDelay)
	}
	if cfg.Editor.Overlay.SelectedOutline != "3px solid red" {
		t.Errorf("SelectedOutline = %q", cfg.Editor.Overlay.SelectedOutline)
	}
	// untouched fields keep defaults
	if cfg.Editor.Overlay.HoverBackground != DefaultOverlay().HoverBackground {
		t.Errorf("HoverBackground = %q", cfg.Editor.Overlay.HoverBackground)
	}
	if cfg.Server.Port != 8080 && os.Getenv("PORT") == "" {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
	if cfg.Server.RateWindow != time.Minute {
		t.Errorf("RateWindow = %v", cfg.Server.RateWindow)
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("editor:\n  autosav: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GEMINI_API_KEY":       "key",
		"NETLIFY_ACCESS_TOKEN": "token",
		"PORT":                 "9000",
		"PAGESMITH_ENV":        "production",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Generator.APIKey != "key" || cfg.Deploy.Token != "token" || cfg.Server.Port != 9000 {
		t.Errorf("env not applied: %+v %+v %+v", cfg.Generator, cfg.Deploy, cfg.Server)
	}
	if cfg.Development() {
		t.Error("production environment reported as development")
	}

	bad := Default()
	if err := bad.applyEnv(func(k string) (string, bool) { return "abc", k == "PORT" }); err == nil {
		t.Error("expected error for non-numeric PORT")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Version = 2
	cfg.Server.Port = 0
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if got := len(multierr.Errors(err)); got != 3 {
		t.Errorf("expected 3 errors, got %d: %v", got, err)
	}
	for _, field := range []string{"version", "server.port", "logging.level"} {
		if !strings.Contains(err.Error(), field+":") {
			t.Errorf("%s not reported: %v", field, err)
		}
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name  string
		tweak func(*Config)
		field string
	}{
		{"valid", func(*Config) {}, ""},
		{"rate limit without window", func(c *Config) { c.Server.RateWindow = 0 }, "server.rate_window"},
		{"rate limit disabled", func(c *Config) { c.Server.RateLimit, c.Server.RateWindow = 0, 0 }, ""},
		{"negative autosave delay", func(c *Config) { c.Editor.AutosaveDelay = -time.Second }, "editor.autosave_delay"},
		{"negative session cap", func(c *Config) { c.Editor.MaxSessions = -1 }, "editor.max_sessions"},
		{"no idle timeout", func(c *Config) { c.Editor.IdleTimeout = 0 }, ""},
		{"relative deploy url", func(c *Config) { c.Deploy.BaseURL = "api/v1" }, "deploy.base_url"},
		{"empty origin", func(c *Config) { c.Server.AllowedOrigins = []string{""} }, "server.allowed_origins[0]"},
		{"hot model", func(c *Config) { c.Generator.Temperature = 3 }, "generator.temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.tweak(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.field+":") {
				t.Errorf("expected %s error, got %v", tt.field, err)
			}
		})
	}
}

func TestDump(t *testing.T) {
	cfg := Default()
	data, err := Dump(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "autosave_delay: 1s") {
		t.Errorf("dump missing duration:\n%s", data)
	}
}

func TestDump_OmitsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Generator.APIKey = "gk-secret"
	cfg.Deploy.Token = "nf-secret"
	data, err := Dump(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("dump leaks secrets:\n%s", data)
	}
	if cfg.Generator.APIKey != "gk-secret" {
		t.Error("Dump modified its argument")
	}
}

func TestLoggingPrepare_None(t *testing.T) {
	conf := LoggingConfig{Level: "none"}
	log, err := conf.Prepare()
	if err != nil {
		t.Fatal(err)
	}
	if log.Core().Enabled(0) {
		t.Error("none level should produce a disabled logger")
	}
}

func TestEditorOptions(t *testing.T) {
	cfg := Default()
	cfg.Editor.AutosaveDelay = 250 * time.Millisecond
	cfg.Editor.Overlay.SelectedOutline = "3px solid green"

	opts := cfg.Editor.Options()
	if !opts.AutosaveEnabled || opts.AutosaveDelay != 250*time.Millisecond {
		t.Errorf("options = %+v", opts)
	}
	if opts.Overlay.SelectedOutline != "3px solid green" {
		t.Errorf("selected outline = %q", opts.Overlay.SelectedOutline)
	}
	if opts.Overlay.HoverBackground != editor.DefaultOverlay().HoverBackground {
		t.Errorf("hover background = %q", opts.Overlay.HoverBackground)
	}
}
