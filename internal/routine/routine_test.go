package routine

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestRunner_GoAndWait(t *testing.T) {
	r := New("test")
	var count int32
	for i := 0; i < 10; i++ {
		r.Go(func() { atomic.AddInt32(&count, 1) })
	}
	r.Wait()

	if got := atomic.LoadInt32(&count); got != 10 {
		t.Errorf("expected 10 executions, got %d", got)
	}
}

func TestRunner_RecoversPanic(t *testing.T) {
	r := New("test")
	var after int32

	r.GoNamed("boom", func() { panic("boom") })
	r.Go(func() { atomic.StoreInt32(&after, 1) })
	r.Wait()

	if atomic.LoadInt32(&after) != 1 {
		t.Error("expected sibling goroutine to run despite panic")
	}
}

func TestRunner_GoNamedWithContext(t *testing.T) {
	r := New("test")
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	var seen atomic.Value
	r.GoNamedWithContext(ctx, "ctx", func(ctx context.Context) {
		seen.Store(ctx.Value(key{}))
	})
	r.Wait()

	if seen.Load() != "v" {
		t.Errorf("expected context value to be propagated, got %v", seen.Load())
	}
}

func TestSafe(t *testing.T) {
	panicked, value := Safe(func() { panic("bad patch") })
	if !panicked || value != "bad patch" {
		t.Errorf("expected recovered panic, got %v %v", panicked, value)
	}

	panicked, _ = Safe(func() {})
	if panicked {
		t.Error("expected no panic")
	}
}
