package genstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalMarkGetForget(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if st, err := s.Get(ctx, "g1"); err != nil || st != Unknown {
		t.Fatalf("missing gen: st=%v err=%v", st, err)
	}
	if err := s.Mark(ctx, "g1", Pending); err != nil {
		t.Fatal(err)
	}
	if st, _ := s.Get(ctx, "g1"); st != Pending {
		t.Fatalf("want pending, got %v", st)
	}
	if err := s.Mark(ctx, "g1", Complete); err != nil {
		t.Fatal(err)
	}
	if st, _ := s.Get(ctx, "g1"); st != Complete {
		t.Fatalf("want complete, got %v", st)
	}
	if err := s.Forget(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	if st, _ := s.Get(ctx, "g1"); st != Unknown {
		t.Fatalf("want unknown after forget, got %v", st)
	}
}

func TestLocalCleanupPrunesOnlyStalePending(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	_ = s.Mark(ctx, "abandoned", Pending)
	_ = s.Mark(ctx, "done", Complete)
	time.Sleep(50 * time.Millisecond)
	s.Cleanup(10 * time.Millisecond)

	if st, _ := s.Get(ctx, "abandoned"); st != Unknown {
		t.Fatalf("expected stale pending pruned, got %v", st)
	}
	if st, _ := s.Get(ctx, "done"); st != Complete {
		t.Fatalf("complete record must survive cleanup, got %v", st)
	}
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewLocalGenStore(10*time.Millisecond, time.Minute)
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestStateString(t *testing.T) {
	for _, st := range []State{Unknown, Pending, Complete} {
		if parseState(st.String()) != st {
			t.Fatalf("state %v does not round-trip", st)
		}
	}
}
