package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	yaml "gopkg.in/yaml.v3"

	"pagesmith/pkg/editor"
)

type (
	// EditorConfig holds defaults for editor sessions
	EditorConfig struct {
		// Autosave enables debounced persistence after edits
		Autosave bool `yaml:"autosave"`

		// AutosaveDelay is the quiet period after the last edit before saving
		AutosaveDelay time.Duration `yaml:"autosave_delay" validate:"gt=0s"`

		// IdleTimeout closes sessions nobody touched for this long, 0 keeps
		// them until deleted
		IdleTimeout time.Duration `yaml:"idle_timeout" validate:"gte=0s"`

		// MaxSessions caps open sessions, 0 means no limit
		MaxSessions int `yaml:"max_sessions" validate:"gte=0"`

		Overlay OverlayConfig `yaml:"overlay"`
	}

	// OverlayConfig holds the transient hover and selection decorations
	OverlayConfig struct {
		HoverBackground    string `yaml:"hover_background"`
		HoverOutline       string `yaml:"hover_outline"`
		HoverTransition    string `yaml:"hover_transition"`
		SelectedBackground string `yaml:"selected_background"`
		SelectedOutline    string `yaml:"selected_outline"`
		SelectedOffset     string `yaml:"selected_outline_offset"`
	}

	ServerConfig struct {
		Port           int           `yaml:"port" validate:"min=1,max=65535"`
		Environment    string        `yaml:"environment"`
		AllowedOrigins []string      `yaml:"allowed_origins" validate:"dive,required"`
		RateLimit      int           `yaml:"rate_limit" validate:"gte=0"`
		RateWindow     time.Duration `yaml:"rate_window" validate:"gte=0s,required_unless=RateLimit 0"`
		BodyLimit      int64         `yaml:"body_limit" validate:"gte=0"`
	}

	StoreConfig struct {
		// Path of the SQLite database, ":memory:" keeps everything in process
		Path string `yaml:"path"`
	}

	GeneratorConfig struct {
		BaseURL     string        `yaml:"base_url" validate:"required,url"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model" validate:"required"`
		Temperature float64       `yaml:"temperature" validate:"gte=0,lte=2"`
		MaxTokens   int           `yaml:"max_tokens" validate:"min=1"`
		Timeout     time.Duration `yaml:"timeout" validate:"gte=0s"`
	}

	DeployConfig struct {
		BaseURL      string        `yaml:"base_url" validate:"required,url"`
		Token        string        `yaml:"token"`
		PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0s"`
		MaxAttempts  int           `yaml:"max_attempts" validate:"min=1"`
	}

	// Config holds configuration options for every pagesmith component
	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Editor    EditorConfig    `yaml:"editor"`
		Server    ServerConfig    `yaml:"server"`
		Store     StoreConfig     `yaml:"store"`
		Generator GeneratorConfig `yaml:"generator"`
		Deploy    DeployConfig    `yaml:"deploy"`
		Logging   LoggingConfig   `yaml:"logging"`
	}
)

// Default returns a configuration usable for local development
func Default() Config {
	return Config{
		Version: 1,
		Editor: EditorConfig{
			Autosave:      true,
			AutosaveDelay: time.Second,
			IdleTimeout:   30 * time.Minute,
			MaxSessions:   100,
			Overlay:       DefaultOverlay(),
		},
		Server: ServerConfig{
			Port:        5000,
			Environment: "development",
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"https://ai-website-builder-n763.vercel.app",
			},
			RateLimit:  100,
			RateWindow: 15 * time.Minute,
			BodyLimit:  10 << 20, // 10MB
		},
		Store: StoreConfig{
			Path: "pagesmith.db",
		},
		Generator: GeneratorConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:       "gemini-2.0-flash",
			Temperature: 0.7,
			MaxTokens:   8192,
			Timeout:     2 * time.Minute,
		},
		Deploy: DeployConfig{
			BaseURL:      "https://api.netlify.com/api/v1",
			PollInterval: time.Second,
			MaxAttempts:  60,
		},
		Logging: LoggingConfig{
			Level: "normal",
		},
	}
}

// DefaultOverlay returns the standard blue hover and selection decorations
func DefaultOverlay() OverlayConfig {
	o := editor.DefaultOverlay()
	return OverlayConfig{
		HoverBackground:    o.HoverBackground,
		HoverOutline:       o.HoverOutline,
		HoverTransition:    o.HoverTransition,
		SelectedBackground: o.SelectedBackground,
		SelectedOutline:    o.SelectedOutline,
		SelectedOffset:     o.SelectedOutlineOffset,
	}
}

// Overlay converts the decorations for an editor session
func (o OverlayConfig) Overlay() editor.Overlay {
	return editor.Overlay{
		HoverBackground:       o.HoverBackground,
		HoverOutline:          o.HoverOutline,
		HoverTransition:       o.HoverTransition,
		SelectedBackground:    o.SelectedBackground,
		SelectedOutline:       o.SelectedOutline,
		SelectedOutlineOffset: o.SelectedOffset,
	}
}

// Options returns session options carrying the configured defaults. Hosts
// fill in persistence and callbacks.
func (c EditorConfig) Options() editor.Options {
	return editor.Options{
		AutosaveEnabled: c.Autosave,
		AutosaveDelay:   c.AutosaveDelay,
		Overlay:         c.Overlay.Overlay(),
	}
}

// Load reads the configuration file at path on top of Default and applies
// environment overrides. An empty path uses defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// We want to use only fields we defined so we cannot use yaml.Unmarshal
		// directly here
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode configuration data: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyEnv overrides secrets and deployment specific values from the
// environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("GEMINI_API_KEY"); ok {
		c.Generator.APIKey = v
	}
	if v, ok := lookup("NETLIFY_ACCESS_TOKEN"); ok {
		c.Deploy.Token = v
	}
	if v, ok := lookup("PAGESMITH_ENV"); ok && v != "" {
		c.Server.Environment = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their yaml names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	err := v.Struct(c)
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	var res error
	for _, fe := range fields {
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		if fe.Param() != "" {
			res = multierr.Append(res, fmt.Errorf("%s: value %v fails %s=%s", path, fe.Value(), fe.Tag(), fe.Param()))
		} else {
			res = multierr.Append(res, fmt.Errorf("%s: value %v fails %s", path, fe.Value(), fe.Tag()))
		}
	}
	return res
}

// Development reports whether error details may be exposed to clients
func (c *Config) Development() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}

// Dump renders the configuration as YAML. Secrets are left out, they come
// from the environment.
func Dump(cfg *Config) ([]byte, error) {
	clean := *cfg
	clean.Generator.APIKey = ""
	clean.Deploy.Token = ""
	data, err := yaml.Marshal(&clean)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
