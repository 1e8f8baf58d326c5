package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/unkn0wn-root/precache"
)

func TestLogrusLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := LogrusLogger{E: logrus.NewEntry(base).WithField("component", "precache")}

	l.Info("install started", precache.Fields{"gen": "g1", "add": 3})
	l.Debug("manifest unchanged", nil)

	if n := len(hook.AllEntries()); n != 2 {
		t.Fatalf("got %d entries", n)
	}
	first := hook.AllEntries()[0]
	if first.Level != logrus.InfoLevel || first.Message != "install started" {
		t.Fatalf("unexpected entry %v %q", first.Level, first.Message)
	}
	if first.Data["gen"] != "g1" || first.Data["add"] != 3 || first.Data["component"] != "precache" {
		t.Fatalf("fields = %v", first.Data)
	}

	l.Error("install failed", precache.Fields{"gen": "g2"})
	last := hook.LastEntry()
	if last.Level != logrus.ErrorLevel || last.Data["gen"] != "g2" {
		t.Fatalf("last = %v %v", last.Level, last.Data)
	}
}
