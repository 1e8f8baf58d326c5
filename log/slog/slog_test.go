package slog

import (
	"bytes"
	"encoding/json"
	stdslog "log/slog"
	"testing"

	"github.com/unkn0wn-root/precache"
)

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})
	l := Logger{L: stdslog.New(h)}

	l.Debug("dropped", precache.Fields{"x": 1})
	l.Warn("genstore mark complete failed", precache.Fields{"gen": "g1"})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if rec["level"] != "WARN" || rec["msg"] != "genstore mark complete failed" || rec["gen"] != "g1" {
		t.Fatalf("record = %v", rec)
	}
}
