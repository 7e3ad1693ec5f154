package querycache

import (
	"context"
	"sync"

	"github.com/smallnest/chanx"
)

// QueryDef declares a read endpoint.
type QueryDef[A, T any] struct {
	// Name is the endpoint name; it is part of every cache key.
	Name string
	// Fetch performs the network request.
	Fetch func(ctx context.Context, args A) (T, error)
	// ProvidesTags labels the entry after each successful fetch.
	ProvidesTags func(result T, args A) []Tag
}

// Result is what a subscriber observes. Data is a private copy.
type Result[T any] struct {
	Data       T
	HasData    bool
	Status     Status
	IsLoading  bool
	IsFetching bool
	IsError    bool
	Error      error
}

// Subscription keeps an entry alive and receives its updates.
type Subscription[T any] struct {
	c       *Client
	e       *entry
	id      uint64
	updates *chanx.UnboundedChan[Result[T]]
	// stop ends the goroutine feeding updates, even when values are unread.
	stop context.CancelFunc

	once     sync.Once
	released bool
}

// Subscribe registers interest in def(args). A fetch starts when there is no
// fresh entry; concurrent subscribers to the same key share it.
func Subscribe[A, T any](c *Client, def *QueryDef[A, T], args A) (*Subscription[T], error) {
	if def == nil || def.Name == "" || def.Fetch == nil {
		return nil, ErrInvalidDefinition
	}
	key, err := makeKey(def.Name, args)
	if err != nil {
		return nil, err
	}

	sub := &Subscription[T]{c: c}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	subCtx, stop := context.WithCancel(c.ctx)
	sub.updates = chanx.NewUnboundedChanSize[Result[T]](subCtx, 4, 4, 4)
	sub.stop = stop
	e := c.entryFor(key, queryFetch(def, args), cloneAny[T](key))
	sub.e = e
	sub.id = c.subscribe(e, func() {
		sub.updates.In <- resultOf[T](e)
	})
	return sub, nil
}

// Query subscribes, waits for the entry to settle and releases the
// subscription. A fresh cached entry is returned without a request.
func Query[A, T any](ctx context.Context, c *Client, def *QueryDef[A, T], args A) (T, error) {
	var zero T
	sub, err := Subscribe(c, def, args)
	if err != nil {
		return zero, err
	}
	defer sub.Unsubscribe()

	res, err := sub.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if res.IsError {
		return zero, res.Error
	}
	if !res.HasData {
		return zero, ErrNoData
	}
	return res.Data, nil
}

// Key returns the cache key of the subscribed entry.
func (s *Subscription[T]) Key() Key {
	return s.e.key
}

// Current returns the latest known state, possibly stale.
func (s *Subscription[T]) Current() Result[T] {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return resultOf[T](s.e)
}

// Updates delivers a Result after every state change of the entry. The
// channel is unbounded and closed by Unsubscribe; unread values are dropped.
func (s *Subscription[T]) Updates() <-chan Result[T] {
	return s.updates.Out
}

// Wait blocks until the entry has no request in flight.
func (s *Subscription[T]) Wait(ctx context.Context) (Result[T], error) {
	for {
		s.c.mu.Lock()
		if s.released {
			s.c.mu.Unlock()
			return Result[T]{}, ErrUnsubscribed
		}
		if !s.e.fetching {
			res := resultOf[T](s.e)
			s.c.mu.Unlock()
			return res, nil
		}
		changed := s.e.changed
		s.c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return Result[T]{}, ctx.Err()
		}
	}
}

// Refetch forces a request unless one is already in flight.
func (s *Subscription[T]) Refetch() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.released || s.e.fetching {
		return
	}
	s.c.startFetch(s.e)
}

// Unsubscribe releases the subscription. It is safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.c.unsubscribe(s.e, s.id)
		s.c.mu.Lock()
		s.released = true
		s.c.mu.Unlock()
		close(s.updates.In)
		s.stop()
	})
}

func queryFetch[A, T any](def *QueryDef[A, T], args A) fetchFunc {
	return func(ctx context.Context) (any, []Tag, error) {
		v, err := def.Fetch(ctx, args)
		if err != nil {
			return nil, nil, err
		}
		var tags []Tag
		if def.ProvidesTags != nil {
			tags = def.ProvidesTags(v, args)
		}
		return v, tags, nil
	}
}

func cloneAny[T any](key Key) func(any) (any, error) {
	return func(v any) (any, error) {
		typed, ok := v.(T)
		if !ok {
			return nil, ErrType(key, v)
		}
		return cloneValue(typed)
	}
}

// resultOf snapshots e for a subscriber. Caller holds c.mu.
func resultOf[T any](e *entry) Result[T] {
	res := Result[T]{
		HasData:    e.hasData,
		Status:     e.status(),
		IsFetching: e.fetching,
		IsLoading:  e.fetching && !e.hasData,
		IsError:    !e.fetching && e.err != nil,
		Error:      e.err,
	}
	if e.hasData {
		if v, err := e.clone(e.view); err == nil {
			res.Data = v.(T)
		}
	}
	return res
}
