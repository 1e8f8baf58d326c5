package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unkn0wn-root/precache"
	"github.com/unkn0wn-root/precache/config"
)

func TestNewWritesJSONToFile(t *testing.T) {
	for _, kind := range []string{config.LoggerLogrus, config.LoggerZap} {
		t.Run(kind, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "logs", "precache.log")
			cfg := &config.Config{
				Logger:      kind,
				LogLevel:    "info",
				LogFilePath: path,
				LogMaxSize:  1,
			}
			l, err := New(cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			l.Debug("hidden", nil)
			l.Info("generation activated", precache.Fields{"gen": "g1"})
			if err := l.Sync(); err != nil && kind == config.LoggerLogrus {
				t.Fatalf("Sync: %v", err)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read log: %v", err)
			}
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) != 1 {
				t.Fatalf("want 1 line, got %d: %s", len(lines), data)
			}
			var rec map[string]any
			if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
				t.Fatalf("not JSON: %v", err)
			}
			if rec["gen"] != "g1" {
				t.Fatalf("record = %v", rec)
			}
		})
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&config.Config{LogLevel: "loud"}); err == nil {
		t.Fatalf("expected error")
	}
}
