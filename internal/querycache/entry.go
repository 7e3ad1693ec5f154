package querycache

import (
	"context"
	"time"
)

// Status is the lifecycle state of a cache entry.
type Status int

const (
	StatusUninitialized Status = iota
	StatusPending
	StatusFulfilled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	case StatusRejected:
		return "rejected"
	default:
		return "uninitialized"
	}
}

type fetchFunc func(ctx context.Context) (any, []Tag, error)

type fetchResult struct {
	value any
	tags  []Tag
}

// patch is one optimistic update layered over the confirmed payload.
type patch struct {
	id        uint64
	apply     func(cur any) (any, error)
	committed bool
}

// entry is guarded by Client.mu.
type entry struct {
	key Key
	// seq tells apart entries recreated for the same key after collection.
	seq   uint64
	fetch fetchFunc
	clone func(any) (any, error)

	// base is the last confirmed response; view is base with patches applied.
	base    any
	view    any
	hasData bool
	err     error
	tags    []Tag
	patches []*patch

	subs map[uint64]func()

	// gen moves on invalidation and abort; a fetch only settles if it was
	// started for the current generation.
	gen         uint64
	fetching    bool
	fetchGen    uint64
	cancelFetch context.CancelFunc
	stale       bool

	gcTimer *time.Timer
	gcSeq   uint64
	removed bool

	changed     chan struct{}
	fulfilledAt time.Time
}

func newEntry(key Key, seq uint64, fetch fetchFunc, clone func(any) (any, error)) *entry {
	return &entry{
		key:     key,
		seq:     seq,
		fetch:   fetch,
		clone:   clone,
		subs:    map[uint64]func(){},
		changed: make(chan struct{}),
	}
}

func (e *entry) status() Status {
	switch {
	case e.fetching:
		return StatusPending
	case e.err != nil:
		return StatusRejected
	case e.hasData:
		return StatusFulfilled
	default:
		return StatusUninitialized
	}
}

// needsFetch reports whether a new subscriber should trigger a request.
func (e *entry) needsFetch() bool {
	if e.fetching {
		return e.fetchGen != e.gen
	}
	return !e.hasData || e.stale || e.err != nil
}

func (e *entry) provides(tags []Tag) bool {
	for _, inv := range tags {
		for _, p := range e.tags {
			if inv.matches(p) {
				return true
			}
		}
	}
	return false
}

// recompute rebuilds view from base and the remaining patches, in call order.
// Patches that no longer apply to the new base are dropped.
func (e *entry) recompute() (dropped []uint64) {
	if !e.hasData {
		e.view = nil
		return nil
	}
	view := e.base
	kept := e.patches[:0]
	for _, p := range e.patches {
		next, err := p.apply(view)
		if err != nil {
			dropped = append(dropped, p.id)
			continue
		}
		view = next
		kept = append(kept, p)
	}
	e.patches = kept
	e.view = view
	return dropped
}

// dropCommitted removes patches whose writes the server has confirmed; the
// fresh base already reflects them.
func (e *entry) dropCommitted() {
	kept := e.patches[:0]
	for _, p := range e.patches {
		if !p.committed {
			kept = append(kept, p)
		}
	}
	e.patches = kept
}

func (e *entry) findPatch(id uint64) int {
	for i, p := range e.patches {
		if p.id == id {
			return i
		}
	}
	return -1
}

// broadcast wakes waiters and notifies subscribers of a state change.
func (e *entry) broadcast() {
	close(e.changed)
	e.changed = make(chan struct{})
	for _, notify := range e.subs {
		notify()
	}
}
