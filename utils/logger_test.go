package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRollingFileLoggerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	l, err := NewRollingFileLogger(RollingFile{Path: path}, "warn", false)
	if err != nil {
		t.Fatalf("NewRollingFileLogger: %v", err)
	}
	l.Info("dropped below level")
	l.Warn("counter refresh failed")
	_ = l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	if strings.Contains(out, "dropped below level") {
		t.Fatalf("info entry written at warn level")
	}
	if !strings.Contains(out, `"msg":"counter refresh failed"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestRollingFileLoggerWithoutSinksIsNop(t *testing.T) {
	l, err := NewRollingFileLogger(RollingFile{}, "info", false)
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(0) {
		t.Fatalf("expected a nop logger")
	}
}
