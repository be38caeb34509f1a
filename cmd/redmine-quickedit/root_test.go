package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jbeckham/redmine-quickedit/internal/config"
)

func TestParseIssueRef(t *testing.T) {
	tests := []struct {
		ref     string
		want    int
		wantErr bool
	}{
		{"123", 123, false},
		{" #42 ", 42, false},
		{"https://redmine.example.com/issues/7", 7, false},
		{"https://redmine.example.com/redmine/issues/88?tab=history#note-2", 88, false},
		{"0", 0, true},
		{"abc", 0, true},
		{"https://redmine.example.com/projects/web", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := parseIssueRef(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %d", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("parseIssueRef(%q) = %d, %v; want %d", tt.ref, got, err, tt.want)
			}
		})
	}
}

func TestOpenLoggerWithoutFile(t *testing.T) {
	logger, closeLog, err := openLogger(t.TempDir(), config.LogConfig{Level: "debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeLog()
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level enabled")
	}
}

func TestOpenLoggerWritesRelativeFile(t *testing.T) {
	dir := t.TempDir()
	logger, closeLog, err := openLogger(dir, config.LogConfig{Level: "info", File: "debug.log"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("visible", "issue", 123)
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("debug record written at info level")
	}
	if !strings.Contains(string(data), "issue=123") {
		t.Errorf("expected info record, got %q", data)
	}
}

func TestOpenLoggerFlagOverridesLevel(t *testing.T) {
	logLevel = "error"
	defer func() { logLevel = "" }()

	logger, closeLog, err := openLogger(t.TempDir(), config.LogConfig{Level: "debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeLog()
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info disabled by --log-level error")
	}

	logLevel = "loud"
	if _, _, err := openLogger(t.TempDir(), config.LogConfig{}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestInitAndExplain(t *testing.T) {
	dir := filepath.Join(t.TempDir(), config.DirName)
	var out bytes.Buffer
	if err := initAndExplain(&out, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !config.DirExists(dir) {
		t.Fatal("expected config dir created")
	}
	if !strings.Contains(out.String(), config.SecretsPath(dir)) {
		t.Errorf("expected secrets path in instructions, got %q", out.String())
	}
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issue.html")
	markup := `<html><body><div class="issue"><div class="status attribute"><div class="label">Status:</div><div class="value">New</div></div></div></body></html>`
	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := fileLoader(path, 55)(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.IssueID() != 55 {
		t.Errorf("expected issue 55, got %d", doc.IssueID())
	}

	doc, err = fileLoader(path, 0)(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.IssueID() != 0 {
		t.Errorf("expected no issue id, got %d", doc.IssueID())
	}

	if _, err := fileLoader(filepath.Join(t.TempDir(), "missing.html"), 1)(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}
