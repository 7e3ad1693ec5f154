package querycache

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progress struct {
	UserID string   `json:"userId"`
	Hearts int      `json:"hearts"`
	Points int      `json:"points"`
	Done   []string `json:"done"`
}

// fakeSource is a backend whose responses can be held back by a gate.
type fakeSource struct {
	mu     sync.Mutex
	calls  atomic.Int32
	gate   chan struct{}
	value  progress
	err    error
	seenCt []context.Context
}

func (f *fakeSource) set(p progress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = p
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) fetch(ctx context.Context, userID string) (progress, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seenCt = append(f.seenCt, ctx)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return progress{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return progress{}, f.err
	}
	p := f.value
	p.UserID = userID
	return p, nil
}

func progressDef(src *fakeSource) *QueryDef[string, progress] {
	return &QueryDef[string, progress]{
		Name:  "studentProgress",
		Fetch: src.fetch,
		ProvidesTags: func(_ progress, userID string) []Tag {
			return []Tag{IDTag("StudentProgress", userID)}
		},
	}
}

func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	c, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(&Config{KeepUnusedFor: -time.Second}, nil)
	require.Error(t, err)

	c, err := New(nil, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, 60*time.Second, c.cfg.KeepUnusedFor)
}

func TestSubscribe_CoalescesConcurrentSubscribers(t *testing.T) {
	c := newTestClient(t, nil)
	src := &fakeSource{gate: make(chan struct{}), value: progress{Hearts: 5}}
	def := progressDef(src)

	sub1, err := Subscribe(c, def, "u1")
	require.NoError(t, err)
	defer sub1.Unsubscribe()
	sub2, err := Subscribe(c, def, "u1")
	require.NoError(t, err)
	defer sub2.Unsubscribe()

	assert.True(t, sub1.Current().IsLoading)
	close(src.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r1, err := sub1.Wait(ctx)
	require.NoError(t, err)
	r2, err := sub2.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, r1.Data, r2.Data)
	assert.Equal(t, 5, r1.Data.Hearts)
	assert.Equal(t, StatusFulfilled, r1.Status)
}

func TestQuery_ConcurrentCallersShareOneRequest(t *testing.T) {
	c := newTestClient(t, nil)
	src := &fakeSource{gate: make(chan struct{}), value: progress{Hearts: 3}}
	def := progressDef(src)

	var wg sync.WaitGroup
	results := make([]progress, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := Query(context.Background(), c, def, "u1")
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, p := range results {
		assert.Equal(t, results[0], p)
	}
}

func TestSubscribe_DifferentArgsAreDifferentEntries(t *testing.T) {
	c := newTestClient(t, nil)
	src := &fakeSource{value: progress{Hearts: 5}}
	def := progressDef(src)

	p1, err := Query(context.Background(), c, def, "u1")
	require.NoError(t, err)
	p2, err := Query(context.Background(), c, def, "u2")
	require.NoError(t, err)

	assert.Equal(t, "u1", p1.UserID)
	assert.Equal(t, "u2", p2.UserID)
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, 2, c.Stats().Entries)
}

func TestSubscribe_UnserializableArgs(t *testing.T) {
	c := newTestClient(t, nil)
	def := &QueryDef[chan int, int]{
		Name:  "bad",
		Fetch: func(context.Context, chan int) (int, error) { return 1, nil },
	}
	_, err := Subscribe(c, def, make(chan int))
	require.Error(t, err)
}

func TestQuery_ResubscribeWithinRetentionUsesCache(t *testing.T) {
	c := newTestClient(t, &Config{KeepUnusedFor: time.Minute, FetchTimeout: time.Second})
	src := &fakeSource{value: progress{Hearts: 5}}
	def := progressDef(src)

	first, err := Query(context.Background(), c, def, "u1")
	require.NoError(t, err)
	second, err := Query(context.Background(), c, def, "u1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestQuery_EntryCollectedAfterRetention(t *testing.T) {
	c := newTestClient(t, &Config{KeepUnusedFor: 20 * time.Millisecond, FetchTimeout: time.Second})
	src := &fakeSource{value: progress{Hearts: 5}}
	def := progressDef(src)

	_, err := Query(context.Background(), c, def, "u1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Stats().Entries == 0 }, time.Second, 5*time.Millisecond)

	_, err = Query(context.Background(), c, def, "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestSubscribe_KeepsEntryWhileSubscribed(t *testing.T) {
	c := newTestClient(t, &Config{KeepUnusedFor: 10 * time.Millisecond, FetchTimeout: time.Second})
	src := &fakeSource{value: progress{Hearts: 5}}
	def := progressDef(src)

	sub, err := Subscribe(c, def, "u1")
	require.NoError(t, err)
	_, err = sub.Wait(context.Background())
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, c.Stats().Entries)

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.Eventually(t, func() bool { return c.Stats().Entries == 0 }, time.Second, 5*time.Millisecond)

	_, err = sub.Wait(context.Background())
	assert.ErrorIs(t, err, ErrUnsubscribed)
}

func TestUnsubscribe_ReleasesUnreadUpdates(t *testing.T) {
	c := newTestClient(t, nil)
	src := &fakeSource{value: progress{Hearts: 5}}
	def := progressDef(src)
	_, err := Query(context.Background(), c, def, "u1")
	require.NoError(t, err)

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		sub, err := Subscribe(c, def, "u1")
		require.NoError(t, err)
		for j := 0; j < 10; j++ {
			p, err := UpdateQueryData(c, def, "u1", func(d *progress) { d.Hearts-- })
			require.NoError(t, err)
			p.Undo()
		}
		sub.Unsubscribe()
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 2*time.Second, 10*time.Millisecond, "subscriptions left goroutines behind: %d before, %d now", before, runtime.NumGoroutine())
}

func TestSubscribe_RecreatedEntryDoesNotJoinAbortedFetch(t *testing.T) {
	c := newTestClient(t, &Config{KeepUnusedFor: 10 * time.Millisecond, FetchTimeout: time.Second, AbortOnLastUnsubscribe: true})
	gate := make(chan struct{})
	var calls atomic.Int32
	def := &QueryDef[string, progress]{
		Name: "studentProgress",
		Fetch: func(ctx context.Context, userID string) (progress, error) {
			if calls.Add(1) == 1 {
				// ignores cancellation until released
				<-gate
				return progress{}, ctx.Err()
			}
			return progress{UserID: userID, Hearts: 3}, nil
		},
	}
	defer close(gate)

	first, err := Subscribe(c, def, "u1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	first.Unsubscribe()
	require.Eventually(t, func() bool { return c.Stats().Entries == 0 }, time.Second, 5*time.Millisecond)

	second, err := Subscribe(c, def, "u1")
	require.NoError(t, err)
	defer second.Unsubscribe()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := second.Wait(ctx)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, 3, res.Data.Hearts)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQuery_ErrorIsReportedAndRetriedOnNextSubscription(t *testing.T) {
	c := newTestClient(t, nil)
	boom := errors.New("backend down")
	src := &fakeSource{value: progress{Hearts: 5}}
	src.fail(boom)
	def := progressDef(src)

	sub, err := Subscribe(c, def, "u1")
	require.NoError(t, err)
	res, err := sub.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.ErrorIs(t, res.Error, boom)
	assert.Equal(t, StatusRejected, res.Status)
	sub.Unsubscribe()

	src.fail(nil)
	p, err := Query(context.Background(), c, def, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Hearts)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestQuery_FetchPanicBecomesError(t *testing.T) {
	c := newTestClient(t, nil)
	def := &QueryDef[NoArgs, int]{
		Name:  "explode",
		Fetch: func(context.Context, NoArgs) (int, error) { panic("kaboom") },
	}
	_, err := Query(context.Background(), c, def, NoArgs{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestQuery_ContextCancelled(t *testing.T) {
	c := newTestClient(t, nil)
	src := &fakeSource{gate: make(chan struct{})}
	def := progressDef(src)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Query(ctx, c, def, "u1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(src.gate)
}

func TestUnsubscribe_LastSubscriberAbortsFetch(t *testing.T) {
	c := newTestClient(t, nil)
	src := &fakeSource{gate: make(chan struct{})}
	def := progressDef(src)

	sub, err := Subscribe(c, def, "u1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	sub.Unsubscribe()

	src.mu.Lock()
	fetchCtx := src.seenCt[0]
	src.mu.Unlock()
	select {
	case <-fetchCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected in-flight fetch to be cancelled")
	}

	close(src.gate)
	src.set(progress{Hearts: 2})
	p, err := Query(context.Background(), c, def, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Hearts)
}

func TestUnsubscribe_OtherSubscriberKeepsFetchAlive(t *testing.T) {
	c := newTestClient(t, nil)
	src := &fakeSource{gate: make(chan struct{}), value: progress{Hearts: 4}}
	def := progressDef(src)

	leaving, err := Subscribe(c, def, "u1")
	require.NoError(t, err)
	staying, err := Subscribe(c, def, "u1")
	require.NoError(t, err)
	defer staying.Unsubscribe()

	leaving.Unsubscribe()
	close(src.gate)

	res, err := staying.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Data.Hearts)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestSubscription_UpdatesStream(t *testing.T) {
	c := newTestClient(t, nil)
	src := &fakeSource{value: progress{Hearts: 5}}
	def := progressDef(src)

	sub, err := Subscribe(c, def, "u1")
	require.NoError(t, err)

	var last Result[progress]
	timeout := time.After(time.Second)
	for last.Status != StatusFulfilled {
		select {
		case last = <-sub.Updates():
		case <-timeout:
			t.Fatal("no fulfilled update received")
		}
	}
	assert.Equal(t, 5, last.Data.Hearts)

	sub.Unsubscribe()
	for range sub.Updates() {
	}
}

func TestCurrent_ReturnsPrivateCopy(t *testing.T) {
	c := newTestClient(t, nil)
	src := &fakeSource{value: progress{Hearts: 5, Done: []string{"c1"}}}
	def := progressDef(src)

	sub, err := Subscribe(c, def, "u1")
	require.NoError(t, err)
	defer sub.Unsubscribe()
	res, err := sub.Wait(context.Background())
	require.NoError(t, err)

	res.Data.Done[0] = "mutated"
	assert.Equal(t, "c1", sub.Current().Data.Done[0])
}

func TestClose_RejectsNewWork(t *testing.T) {
	c, err := New(nil, nil)
	require.NoError(t, err)
	c.Close()
	c.Close()

	_, err = Subscribe(c, progressDef(&fakeSource{}), "u1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, c.Invalidate(TypeTag("StudentProgress")))
}

func TestTag_Matches(t *testing.T) {
	tests := []struct {
		name       string
		invalidate Tag
		provided   Tag
		want       bool
	}{
		{"same id", IDTag("Course", "1"), IDTag("Course", "1"), true},
		{"other id", IDTag("Course", "1"), IDTag("Course", "2"), false},
		{"type-wide invalidation", TypeTag("Course"), IDTag("Course", "2"), true},
		{"type-wide provider", IDTag("Course", "1"), TypeTag("Course"), true},
		{"other type", TypeTag("Lesson"), TypeTag("Course"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.invalidate.matches(tt.provided))
		})
	}
	assert.Equal(t, "Course:1", IDTag("Course", "1").String())
	assert.Equal(t, "Course", TypeTag("Course").String())
}

func TestMakeKey_StableForSameLogicalArgs(t *testing.T) {
	k1, err := makeKey("lessons", map[string]string{"course": "1", "level": "A1"})
	require.NoError(t, err)
	k2, err := makeKey("lessons", map[string]string{"level": "A1", "course": "1"})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Equal(t, `lessons({"course":"1","level":"A1"})`, k1.String())
}
