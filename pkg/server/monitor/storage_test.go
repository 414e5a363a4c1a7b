package monitor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nicktill/thermonest/pkg/errdefs"
)

func TestStorageMonitor_GetLimit(t *testing.T) {
	sm := NewStorageMonitor("/tmp", 1024*1024*1024)
	if got := sm.GetLimit(); got != 1024*1024*1024 {
		t.Errorf("GetLimit() = %d, want %d", got, 1024*1024*1024)
	}
}

func TestStorageMonitor_GetUsage(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test data"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	sm := NewStorageMonitor(tmpDir, 1024*1024*1024)
	usage, err := sm.GetUsage()
	if err != nil {
		t.Fatalf("GetUsage() error = %v", err)
	}

	if usage < 9 {
		t.Errorf("GetUsage() = %d, want at least 9", usage)
	}
}

func TestStorageMonitor_Caching(t *testing.T) {
	tmpDir := t.TempDir()
	sm := NewStorageMonitor(tmpDir, 1024*1024*1024)

	usage1, err := sm.GetUsage()
	if err != nil {
		t.Fatalf("GetUsage() error = %v", err)
	}

	usage2, err := sm.GetUsage()
	if err != nil {
		t.Fatalf("GetUsage() error = %v", err)
	}

	if usage1 != usage2 {
		t.Errorf("Cached values differ: %d != %d", usage1, usage2)
	}
}

func TestStorageMonitor_InvalidDir(t *testing.T) {
	sm := NewStorageMonitor("/nonexistent/path/12345", 1024*1024*1024)
	_, err := sm.GetUsage()
	if err == nil {
		t.Error("GetUsage() should return error for nonexistent directory")
	}
}

func TestStorageMonitor_CheckLimit(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "vlog"), make([]byte, 64*1024), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if err := NewStorageMonitor(tmpDir, 1024*1024*1024).CheckLimit(); err != nil {
		t.Errorf("CheckLimit() under limit = %v, want nil", err)
	}

	err := NewStorageMonitor(tmpDir, 1024).CheckLimit()
	if !errors.Is(err, errdefs.ErrStorageFull) {
		t.Errorf("CheckLimit() over limit = %v, want ErrStorageFull", err)
	}

	if err := NewStorageMonitor(tmpDir, 0).CheckLimit(); err != nil {
		t.Errorf("CheckLimit() with no limit = %v, want nil", err)
	}
}

func TestStorageMonitor_Usage(t *testing.T) {
	tmpDir := t.TempDir()
	sm := NewStorageMonitor(tmpDir, 1000)

	usage, err := sm.Usage()
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if usage.MaxBytes != 1000 {
		t.Errorf("MaxBytes = %d, want 1000", usage.MaxBytes)
	}
	if usage.Percent != 0 {
		t.Errorf("Percent = %v, want 0 for empty dir", usage.Percent)
	}
}
