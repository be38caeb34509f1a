package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// SampleConfig is the default config.yaml written by Init.
const SampleConfig = `# redmine-quickedit configuration
# Edit the values below for your Redmine instance.

redmine:
  base_url: https://redmine.example.com

editor:
  # What a click outside the edit control does: commit or cancel.
  outside_click: commit
  # Read "3000" in a time field as 30:00 hours.
  packed_durations: true

display:
  # Match "My account > Preferences > Date format" in Redmine.
  date_format: "%Y/%m/%d"

log:
  level: info
  # file: redmine-quickedit.log
`

// SampleSecrets is the default secrets.yaml written by Init.
const SampleSecrets = `# redmine-quickedit secrets, DO NOT COMMIT
# Find your API access key under "My account" in Redmine
# (REST web service must be enabled by an administrator).

redmine:
  api_key: ""
`

// Init creates dir with sample config and secrets files. Existing files are
// left alone.
func Init(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	if err := writeIfNotExists(ConfigPath(dir), SampleConfig, 0o644); err != nil {
		return err
	}
	return writeIfNotExists(SecretsPath(dir), SampleSecrets, 0o600)
}

// DirExists returns true if dir exists and is a directory.
func DirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

func writeIfNotExists(path, content string, perm os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		return nil // already exists, don't overwrite
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
