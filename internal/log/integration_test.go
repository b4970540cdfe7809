//go:build integration

package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestIntegration_FullLifecycle(t *testing.T) {
	dir := t.TempDir()

	staleName := "20200101T000000-999.jsonl"
	stalePath := filepath.Join(dir, staleName)
	os.WriteFile(stalePath, []byte("stale run"), 0644)
	old := time.Now().AddDate(0, 0, -20)
	os.Chtimes(stalePath, old, old)

	if err := Init(Options{
		Verbose:       false,
		DebugDir:      dir,
		RetentionDays: 14,
	}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := os.Stat(stalePath); !os.IsNotExist(err) {
		t.Error("stale run log should have been cleaned up on Init")
	}

	Debug("debug message", "key", "value")
	Info("info message")
	Warn("warn message")
	Error("error message")

	Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected the run to produce exactly one log file, got %d", len(entries))
	}

	content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	contentStr := string(content)
	for _, msg := range []string{"debug message", "info message", "warn message", "error message"} {
		if !strings.Contains(contentStr, msg) {
			t.Errorf("log file should contain %q", msg)
		}
	}
}
