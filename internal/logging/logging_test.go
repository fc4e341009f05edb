package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/MeduzaReader/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarning,
		"WARN":    LevelWarning,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	closer, err := Setup(config.Logging{Level: "DEBUG", File: path, MaxSizeMB: 1}, false)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		closer.Close()
	})

	log.Printf("hello from test")
	Debugf("debug line %d", 7)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("expected log line in file, got %q", data)
	}
	if !strings.Contains(string(data), "DEBUG debug line 7") {
		t.Errorf("expected debug line in file, got %q", data)
	}
}

func TestLevelGatesOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	closer, err := Setup(config.Logging{Level: "ERROR", File: path, MaxSizeMB: 1}, false)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		closer.Close()
		current = LevelInfo
	})

	Debugf("debug line")
	Infof("info line")
	Warnf("warning line")
	Errorf("error line %d", 3)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	got := string(data)
	for _, dropped := range []string{"debug line", "info line", "warning line"} {
		if strings.Contains(got, dropped) {
			t.Errorf("expected %q to be filtered at ERROR level, got %q", dropped, got)
		}
	}
	if !strings.Contains(got, "ERROR error line 3") {
		t.Errorf("expected error line in file, got %q", got)
	}
}

func TestWarningLevelKeepsWarnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	closer, err := Setup(config.Logging{Level: "WARNING", File: path, MaxSizeMB: 1}, false)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		closer.Close()
		current = LevelInfo
	})

	Infof("info line")
	Warnf("chunk %d failed", 2)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if strings.Contains(string(data), "info line") {
		t.Errorf("expected info line to be filtered, got %q", data)
	}
	if !strings.Contains(string(data), "WARNING chunk 2 failed") {
		t.Errorf("expected warning line, got %q", data)
	}
}
