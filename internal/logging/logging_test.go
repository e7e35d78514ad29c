package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	clierr "github.com/manifest-network/manifest-mcp-browser-sub000/internal/errors"
)

func TestNewWritesJSONToStderr(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Config{Level: "info"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closeFn()

	log.Named("dispatch").Info("query dispatched", Details("details", map[string]any{
		"module":   "bank",
		"mnemonic": "abandon abandon",
	}))
	_ = log.Sync()

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if line["logger"] != "dispatch" || line["msg"] != "query dispatched" || line["timestamp"] == nil {
		t.Fatalf("unexpected line %v", line)
	}
	details := line["details"].(map[string]any)
	if details["mnemonic"] != "[REDACTED]" || details["module"] != "bank" {
		t.Fatalf("details not redacted: %v", details)
	}
}

func TestDefaultLevelIsWarn(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Config{}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown")
	_ = log.Sync()
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "manifest.log")
	var buf bytes.Buffer
	log, closeFn, err := New(Config{Level: "debug", Encoding: "console", File: path}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Debug("to file")
	_ = log.Sync()
	_ = closeFn()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "to file") || buf.Len() != 0 {
		t.Fatalf("expected file-only output, file=%q stderr=%q", raw, buf.String())
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New(Config{Level: "chatty"}, &bytes.Buffer{})
	if clierr.CodeOf(err) != clierr.CodeConfigInvalid {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
}
