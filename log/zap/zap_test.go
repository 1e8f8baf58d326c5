package zap

import (
	"errors"
	"testing"

	"github.com/unkn0wn-root/precache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := ZapLogger{L: zap.New(core)}

	l.Debug("serve miss", precache.Fields{"path": "/x"})
	l.Info("generation activated", precache.Fields{"gen": "g1", "previous": ""})
	l.Warn("genstore get failed", nil)
	l.Error("install failed", precache.Fields{"err": errors.New("boom")})

	entries := logs.AllUntimed()
	if len(entries) != 4 {
		t.Fatalf("got %d entries", len(entries))
	}
	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Fatalf("entry %d level = %v", i, e.Level)
		}
	}
	if got := entries[1].ContextMap()["gen"]; got != "g1" {
		t.Fatalf("gen field = %v", got)
	}
	if got := entries[3].ContextMap()["err"]; got != "boom" {
		t.Fatalf("err field = %v", got)
	}
	if len(entries[2].Context) != 0 {
		t.Fatalf("nil fields produced context %v", entries[2].Context)
	}
}
