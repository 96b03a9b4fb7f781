package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHistoryAndBroadcast(t *testing.T) {
	Init("DEBUG")
	ch := make(chan string, 4)
	SetBroadcast(ch)
	defer SetBroadcast(nil)

	Info("Backend excluded", "backend", "NZBgeek")

	select {
	case line := <-ch:
		if !strings.Contains(line, `msg="Backend excluded"`) || !strings.Contains(line, "backend=NZBgeek") {
			t.Errorf("unexpected broadcast line %q", line)
		}
	case <-time.After(time.Second):
		t.Fatal("no broadcast")
	}

	history := GetHistory()
	if len(history) == 0 || !strings.Contains(history[len(history)-1], "backend=NZBgeek") {
		t.Errorf("history missing last line: %v", history)
	}
}

func TestLevelFiltersHistory(t *testing.T) {
	Init("ERROR")
	defer Init("DEBUG")
	before := len(GetHistory())
	Debug("should not be recorded")
	if after := len(GetHistory()); after != before {
		t.Errorf("debug line recorded at ERROR level")
	}
}

func TestEnableFile(t *testing.T) {
	Init("INFO")
	path := filepath.Join(t.TempDir(), "logs", "showtracker.log")
	if err := EnableFile(FileOptions{Path: path, MaxSizeMB: 1}); err != nil {
		t.Fatal(err)
	}
	Info("written to file", "n", 1)
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing line: %q", data)
	}
}
