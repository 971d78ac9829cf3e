package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestSetupWritesRotatedFile(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	path := filepath.Join(t.TempDir(), "tokokasir.log")
	logger, err := Setup("production", path)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	zap.S().Infow("sale committed", "sale_id", "sale_test")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"sale_id":"sale_test"`) {
		t.Fatalf("expected structured field in log file, got %s", data)
	}
}

func TestSetupDevelopmentWithoutFile(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	logger, err := Setup("development", "")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if zap.L() != logger {
		t.Fatalf("expected global logger to be replaced")
	}
}
