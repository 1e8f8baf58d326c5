package ristretto

import (
	"context"
	"testing"
)

func TestSetIsImmediatelyReadable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics = true
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	defer p.Close(ctx)

	ok, err := p.Set(ctx, "asset:shell:g1:/", []byte("frame"), 5, 0)
	if err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, "asset:shell:g1:/")
	if err != nil || !ok || string(b) != "frame" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}

	if err := p.Del(ctx, "asset:shell:g1:/"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Get(ctx, "asset:shell:g1:/"); ok {
		t.Fatalf("entry survived Del")
	}
	if p.Metrics() == nil {
		t.Fatalf("metrics enabled but nil")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
