// Package config handles loading and validating redmine-quickedit
// configuration.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jbeckham/redmine-quickedit/internal/editor"
	"github.com/jbeckham/redmine-quickedit/internal/page"
	"github.com/jbeckham/redmine-quickedit/internal/redmine"
)

// DirName is the name of the configuration directory.
const DirName = ".redmine-quickedit"

// Config holds the application configuration.
type Config struct {
	Redmine RedmineConfig `yaml:"redmine"`
	Editor  EditorConfig  `yaml:"editor"`
	Display DisplayConfig `yaml:"display"`
	Log     LogConfig     `yaml:"log"`
}

// RedmineConfig holds the tracker connection.
// The base URL lives in config.yaml; the API key lives in a separate
// secrets.yaml file that is gitignored.
type RedmineConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"` // loaded from secrets file, not config
}

// SecretsConfig holds sensitive credentials loaded from a separate file.
type SecretsConfig struct {
	Redmine RedmineSecrets `yaml:"redmine"`
}

// RedmineSecrets holds the Redmine credentials.
type RedmineSecrets struct {
	APIKey string `yaml:"api_key"`
}

// EditorConfig tunes inline editing.
type EditorConfig struct {
	// OutsideClick is "commit" (default) or "cancel".
	OutsideClick string `yaml:"outside_click"`
	// PackedDurations reads "3000" in a duration field as 30:00. Defaults to
	// true.
	PackedDurations *bool `yaml:"packed_durations"`
}

// DisplayConfig mirrors the tracker's display settings.
type DisplayConfig struct {
	// DateFormat uses Redmine's strftime style, e.g. "%Y/%m/%d".
	DateFormat string `yaml:"date_format"`
}

// LogConfig controls the debug log. The TUI owns the terminal, so logs only
// go to File; an empty File discards them.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfigDir returns the .redmine-quickedit directory next to the
// executable.
func DefaultConfigDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("finding executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolving executable symlinks: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), DirName), nil
}

// ConfigPath returns the config file path inside dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, "config.yaml")
}

// SecretsPath returns the secrets file path inside dir.
func SecretsPath(dir string) string {
	return filepath.Join(dir, "secrets.yaml")
}

// Load reads and parses the config and secrets files.
// configPath is the path to config.yaml, secretsPath is the path to
// secrets.yaml. A missing secrets file is not an error: credentials are only
// checked when the tracker is contacted.
func Load(configPath, secretsPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Load secrets from separate file
	secretsData, err := os.ReadFile(secretsPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading secrets file: %w", err)
	default:
		var secrets SecretsConfig
		if err := yaml.Unmarshal(secretsData, &secrets); err != nil {
			return nil, fmt.Errorf("parsing secrets file: %w", err)
		}
		// Merge secrets into config
		cfg.Redmine.APIKey = secrets.Redmine.APIKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the option values. Missing credentials are not an error
// here.
func (c *Config) Validate() error {
	if c.Redmine.BaseURL != "" {
		u, err := url.Parse(c.Redmine.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("redmine.base_url must be an http(s) URL, got %q", c.Redmine.BaseURL)
		}
	}
	switch editor.OutsideClick(c.Editor.OutsideClick) {
	case "", editor.OutsideCommit, editor.OutsideCancel:
	default:
		return fmt.Errorf("editor.outside_click must be %q or %q, got %q",
			editor.OutsideCommit, editor.OutsideCancel, c.Editor.OutsideClick)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Credentials returns the tracker connection settings.
func (c *Config) Credentials() redmine.Credentials {
	return redmine.Credentials{BaseURL: c.Redmine.BaseURL, APIKey: c.Redmine.APIKey}
}

// EditorOptions returns the inline editor settings.
func (c *Config) EditorOptions() editor.Options {
	opts := editor.Options{
		OutsideClick:    editor.OutsideClick(c.Editor.OutsideClick),
		PackedDurations: true,
	}
	if c.Editor.PackedDurations != nil {
		opts.PackedDurations = *c.Editor.PackedDurations
	}
	return opts
}

// RenderOptions returns the page rendering settings.
func (c *Config) RenderOptions() page.RenderOptions {
	return page.RenderOptions{DateFormat: DateLayout(c.Display.DateFormat)}
}

// strftimeLayouts maps the directives Redmine offers for dates to Go
// layout elements.
var strftimeLayouts = strings.NewReplacer(
	"%Y", "2006",
	"%y", "06",
	"%m", "01",
	"%d", "02",
	"%e", "_2",
	"%b", "Jan",
	"%B", "January",
	"%%", "%",
)

// DateLayout converts a strftime date format to a Go time layout. An empty
// format yields the tracker default.
func DateLayout(format string) string {
	if format == "" {
		return page.DefaultDateFormat
	}
	return strftimeLayouts.Replace(format)
}

// ParseLevel maps a log level name to a slog level. An empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown level %q", name)
}

// FileSource reads credentials from the config and secrets files every time
// they are needed, so edits to either file apply to the next request.
type FileSource struct {
	ConfigPath  string
	SecretsPath string
}

// NewFileSource returns a FileSource for the files in dir.
func NewFileSource(dir string) FileSource {
	return FileSource{ConfigPath: ConfigPath(dir), SecretsPath: SecretsPath(dir)}
}

// Credentials implements redmine.CredentialSource.
func (s FileSource) Credentials(context.Context) (redmine.Credentials, error) {
	cfg, err := Load(s.ConfigPath, s.SecretsPath)
	if err != nil {
		return redmine.Credentials{}, err
	}
	return cfg.Credentials(), nil
}
