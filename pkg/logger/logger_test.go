package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", DEBUG, true},
		{"INFO", INFO, true},
		{" warning ", WARN, true},
		{"Error", ERROR, true},
		{"verbose", INFO, false},
		{"", INFO, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v; expected %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: WARN, Output: &buf})

	l.Debugf("hidden %d", 1)
	l.Infof("hidden %d", 2)
	l.Warnf("shown %d", 3)
	l.Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected messages below WARN to be dropped, got %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 3") || !strings.Contains(out, "[ERROR] shown 4") {
		t.Errorf("Missing expected lines in %q", out)
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: DEBUG, Output: &buf}).With("service").With("extract")
	l.Infof("frames=%d", 12)

	if got := strings.TrimSpace(buf.String()); got != "[INFO] service/extract: frames=12" {
		t.Errorf("Unexpected line %q", got)
	}
}

func TestLoggerPlainMessage(t *testing.T) {
	tests := []struct {
		name string
		log  func(l *Logger)
		want string
	}{
		{"no args", func(l *Logger) { l.Infof("model loaded") }, "model loaded"},
		{"escaped percent", func(l *Logger) { l.Infof("%d%% done", 100) }, "100% done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(New(Config{Level: DEBUG, Output: &buf}))
			if got := strings.TrimSpace(buf.String()); got != "[INFO] "+tt.want {
				t.Errorf("Expected %q, got %q", "[INFO] "+tt.want, got)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic or write anywhere.
	Discard().Errorf("nothing %s", "here")
}

func TestNewLogrusJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogrus(FormatJSON, INFO, &buf)
	l.Debugf("dropped")
	l.Warnf("mismatch: expected %d, got %d", 461, 460)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if entry["level"] != "warning" || entry["msg"] != "mismatch: expected 461, got 460" {
		t.Errorf("Unexpected entry %v", entry)
	}
}
