package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func loadWith(t *testing.T, args ...string) Settings {
	t.Helper()
	var got Settings
	cmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := Load(cmd)
			got = s
			return err
		},
	}
	AddFlags(cmd)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return got
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	s := loadWith(t)
	if s.DBPath != "crysense.sqlite3" || !s.StrictParams || s.History || s.LogFormat != "console" {
		t.Errorf("Unexpected defaults %+v", s)
	}
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := filepath.Join(dir, "crysense.yaml")
	content := "db: from-file.sqlite3\nmodel: file.msgpack\nconcurrency: 3\nhistory: true\n"
	if err := os.WriteFile(cfg, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CRYSENSE_MODEL", "env.msgpack")
	t.Setenv("CRYSENSE_LOG_LEVEL", "debug")

	s := loadWith(t, "--concurrency", "5")
	if s.DBPath != "from-file.sqlite3" {
		t.Errorf("Expected db from file, got %s", s.DBPath)
	}
	if s.ModelPath != "env.msgpack" {
		t.Errorf("Expected env to beat file, got %s", s.ModelPath)
	}
	if s.Concurrency != 5 {
		t.Errorf("Expected flag to beat file, got %d", s.Concurrency)
	}
	if !s.History || s.LogLevel != "debug" {
		t.Errorf("Unexpected settings %+v", s)
	}
}

func TestExplicitConfigMissing(t *testing.T) {
	cmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, err := Load(cmd)
			return err
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	AddFlags(cmd)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected error for a missing explicit config file")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		format  string
		level   string
		wantErr bool
	}{
		{"console", "info", false},
		{"", "", false},
		{"json", "debug", false},
		{"text", "warn", false},
		{"xml", "info", true},
		{"json", "loud", true},
	}
	for _, tt := range tests {
		l, err := Settings{LogFormat: tt.format, LogLevel: tt.level}.NewLogger()
		if (err != nil) != tt.wantErr {
			t.Errorf("format %q level %q: unexpected error %v", tt.format, tt.level, err)
			continue
		}
		if err == nil && l == nil {
			t.Errorf("format %q: nil logger", tt.format)
		}
	}
}
