// Package querycache is a declarative data-fetching cache for server-derived
// state.
//
// Entries are keyed by endpoint and serialized arguments. Concurrent
// subscribers to the same key share one in-flight request. Mutations
// invalidate entries by tag: subscribed entries refetch immediately, unused
// ones are marked stale and refetch on their next subscription. Optimistic
// patches are layered over the confirmed payload and can be undone one by one
// without disturbing each other. Unused entries are garbage-collected once
// the retention window elapses.
package querycache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/proenglish/go_proenglish/internal/logger"
	"github.com/proenglish/go_proenglish/internal/routine"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Client owns every cache entry. It is safe for concurrent use and is meant
// to be injected, not used as a package singleton.
type Client struct {
	cfg    *Config
	runner *routine.Runner
	group  singleflight.Group
	log    *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[Key]*entry
	nextID  uint64
	closed  bool

	requests atomic.Int64
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Entries     int   `json:"entries"`
	Subscribers int   `json:"subscribers"`
	Fetching    int   `json:"fetching"`
	Stale       int   `json:"stale"`
	Patches     int   `json:"patches"`
	Requests    int64 `json:"requests"`
}

// New creates a Client. A nil cfg uses DefaultConfig, a nil runner a private one.
func New(cfg *Config, runner *routine.Runner) (*Client, error) {
	cfg = cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		runner = routine.New("querycache")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:     cfg,
		runner:  runner,
		log:     logger.WithComponent("querycache"),
		ctx:     ctx,
		cancel:  cancel,
		entries: map[Key]*entry{},
	}, nil
}

// Close cancels in-flight fetches and retention timers. Subsequent calls fail
// with ErrClosed.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, e := range c.entries {
		if e.gcTimer != nil {
			e.gcTimer.Stop()
		}
		if e.cancelFetch != nil {
			e.cancelFetch()
		}
	}
	c.mu.Unlock()
	c.cancel()
	c.log.Info("query cache closed")
}

// Invalidate refetches every subscribed entry providing one of tags, once per
// entry, and marks unsubscribed ones stale. It returns the number of entries hit.
func (c *Client) Invalidate(tags ...Tag) int {
	if len(tags) == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}

	hit := 0
	for _, e := range c.entries {
		if !e.provides(tags) {
			continue
		}
		hit++
		e.gen++
		if len(e.subs) > 0 {
			c.startFetch(e)
			continue
		}
		e.stale = true
	}
	c.log.Debugf("invalidated %v: %d entries", tags, hit)
	return hit
}

// Stats returns counters describing the cache content.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Entries: len(c.entries), Requests: c.requests.Load()}
	for _, e := range c.entries {
		s.Subscribers += len(e.subs)
		s.Patches += len(e.patches)
		if e.fetching {
			s.Fetching++
		}
		if e.stale {
			s.Stale++
		}
	}
	return s
}

// entryFor returns the entry for key, creating it on first use. Caller holds c.mu.
func (c *Client) entryFor(key Key, fetch fetchFunc, clone func(any) (any, error)) *entry {
	if e, ok := c.entries[key]; ok {
		return e
	}
	c.nextID++
	e := newEntry(key, c.nextID, fetch, clone)
	c.entries[key] = e
	c.log.Tracef("entry %s created", key)
	return e
}

// subscribe registers notify on e and starts a fetch when the entry has no
// fresh payload. Caller holds c.mu.
func (c *Client) subscribe(e *entry, notify func()) uint64 {
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	e.gcSeq++
	c.nextID++
	id := c.nextID
	e.subs[id] = notify
	if e.needsFetch() {
		c.startFetch(e)
	}
	return id
}

// unsubscribe removes a subscriber; the last one leaving aborts a pending
// fetch (when configured) and arms the retention timer.
func (c *Client) unsubscribe(e *entry, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := e.subs[id]; !ok {
		return
	}
	delete(e.subs, id)
	if len(e.subs) > 0 || e.removed || c.closed {
		return
	}

	if e.fetching && c.cfg.AbortOnLastUnsubscribe {
		c.log.Debugf("aborting fetch of %s: no subscribers left", e.key)
		e.gen++
		e.fetching = false
		e.stale = true
		if e.cancelFetch != nil {
			e.cancelFetch()
			e.cancelFetch = nil
		}
		e.broadcast()
	}

	e.gcSeq++
	seq := e.gcSeq
	e.gcTimer = time.AfterFunc(c.cfg.KeepUnusedFor, func() {
		c.collect(e, seq)
	})
}

func (c *Client) collect(e *entry, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.gcSeq != seq || len(e.subs) > 0 || e.removed {
		return
	}
	if c.entries[e.key] == e {
		delete(c.entries, e.key)
	}
	e.removed = true
	if e.cancelFetch != nil {
		e.cancelFetch()
		e.cancelFetch = nil
	}
	c.log.Tracef("entry %s collected", e.key)
}

// startFetch issues a request for the entry's current generation, cancelling
// a request started for an older one. Caller holds c.mu.
func (c *Client) startFetch(e *entry) {
	if c.closed {
		return
	}
	if e.fetching && e.fetchGen == e.gen {
		return
	}
	if e.cancelFetch != nil {
		e.cancelFetch()
	}

	gen := e.gen
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.FetchTimeout)
	e.fetching = true
	e.fetchGen = gen
	e.cancelFetch = cancel

	flight := fmt.Sprintf("%s#%d.%d", e.key, e.seq, gen)
	fetch := e.fetch
	key := e.key
	ch := c.group.DoChan(flight, func() (v any, err error) {
		c.requests.Add(1)
		defer func() {
			if rec := recover(); rec != nil {
				err = ErrFetchPanic(key, rec)
			}
		}()
		value, tags, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return fetchResult{value: value, tags: tags}, nil
	})
	c.runner.GoNamed("querycache.settle", func() {
		res := <-ch
		cancel()
		c.settle(e, gen, res)
	})
	e.broadcast()
}

// settle records the outcome of the fetch started for gen. Outcomes of
// aborted or superseded fetches are discarded.
func (c *Client) settle(e *entry, gen uint64, res singleflight.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.removed || !e.fetching || e.fetchGen != gen {
		c.log.Tracef("discarding superseded result for %s#%d", e.key, gen)
		return
	}
	e.fetching = false
	e.cancelFetch = nil

	if gen != e.gen {
		// Invalidated while in flight without subscribers at the time.
		e.stale = true
		if len(e.subs) > 0 {
			c.startFetch(e)
			return
		}
		e.broadcast()
		return
	}

	if res.Err != nil {
		e.err = res.Err
		c.log.Warnf("fetch %s failed: %v", e.key, res.Err)
		e.broadcast()
		return
	}

	fr := res.Val.(fetchResult)
	e.base = fr.value
	e.tags = fr.tags
	e.hasData = true
	e.err = nil
	e.stale = false
	e.fulfilledAt = time.Now()
	e.dropCommitted()
	if dropped := e.recompute(); len(dropped) > 0 {
		c.log.Warnf("entry %s: %d optimistic patches no longer apply and were dropped", e.key, len(dropped))
	}
	e.broadcast()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
