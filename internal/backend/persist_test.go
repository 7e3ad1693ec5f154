package backend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/proenglish/go_proenglish/internal/repository"
)

type fakeSaver struct {
	mu    sync.Mutex
	saves int
	last  *repository.DataDocument
	err   error
}

func (f *fakeSaver) Save(_ context.Context, doc *repository.DataDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saves++
	f.last = doc
	return nil
}

func (f *fakeSaver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func TestFlush(t *testing.T) {
	m := newTestBackend()
	saver := &fakeSaver{}

	if Flush(context.Background(), m, saver) {
		t.Error("expected clean backend to skip flush")
	}

	m.MarkDirty()
	if !Flush(context.Background(), m, saver) {
		t.Fatal("expected dirty backend to flush")
	}
	if m.IsDirty() {
		t.Error("expected dirty flag cleared")
	}
	if m.GetLastUpdate() != saver.last.Metadata.LastUpdate {
		t.Errorf("expected lastUpdate %d, got %d", saver.last.Metadata.LastUpdate, m.GetLastUpdate())
	}
}

func TestFlush_SaveError(t *testing.T) {
	m := newTestBackend()
	m.MarkDirty()
	if Flush(context.Background(), m, &fakeSaver{err: errors.New("disk full")}) {
		t.Error("expected failed save to report false")
	}
	if !m.IsDirty() {
		t.Error("expected backend to stay dirty after failed save")
	}
}

func TestStartPersistenceScheduler_FinalFlush(t *testing.T) {
	m := newTestBackend()
	saver := &fakeSaver{}
	ctx, cancel := context.WithCancel(context.Background())

	done := StartPersistenceScheduler(ctx, m, saver, time.Hour)
	m.MarkDirty()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if saver.count() != 1 {
		t.Errorf("expected final flush, got %d saves", saver.count())
	}
}

func TestStartPersistenceScheduler_Tick(t *testing.T) {
	m := newTestBackend()
	saver := &fakeSaver{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartPersistenceScheduler(ctx, m, saver, 10*time.Millisecond)
	m.MarkDirty()

	deadline := time.Now().Add(2 * time.Second)
	for saver.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if saver.count() == 0 {
		t.Error("expected periodic flush")
	}
}
