package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileWriter_Write(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWriter(dir)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	defer fw.Close()

	if _, err := fw.Write([]byte(`{"msg":"test"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one run log file, got %d", len(entries))
	}
	if !runLogPattern.MatchString(entries[0].Name()) {
		t.Errorf("file name %q does not match runLogPattern", entries[0].Name())
	}

	content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(content), `{"msg":"test"}`) {
		t.Errorf("expected content to contain test message, got: %s", content)
	}
}

func TestFileWriter_SinglePidStaysInOneFile(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWriter(dir)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	defer fw.Close()

	fw.Write([]byte("first\n"))
	fw.Write([]byte("second\n"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected writes within one run to land in a single file, got %d", len(entries))
	}
}

func TestCleanup_RemovesOldRunLogsByModTime(t *testing.T) {
	dir := t.TempDir()

	oldPath := filepath.Join(dir, "20200101T000000-1.jsonl")
	if err := os.WriteFile(oldPath, []byte("old"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	old := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(oldPath, old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	recentPath := filepath.Join(dir, "20200101T000000-2.jsonl")
	if err := os.WriteFile(recentPath, []byte("recent"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ignoredPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(ignoredPath, []byte("keep me"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	Cleanup(dir, 7)

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("old run log should have been removed")
	}
	if _, err := os.Stat(recentPath); err != nil {
		t.Errorf("recent run log should survive: %v", err)
	}
	if _, err := os.Stat(ignoredPath); err != nil {
		t.Errorf("non-matching file should never be touched: %v", err)
	}
}
