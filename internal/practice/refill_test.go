package practice

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefiller struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRefiller) RefillAllHearts(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("expected a deadline")
	}
	return 3, nil
}

func TestValidateSpec(t *testing.T) {
	assert.NoError(t, ValidateSpec(DefaultRefillSpec))
	assert.NoError(t, ValidateSpec("@every 1m"))
	assert.Error(t, ValidateSpec("not a cron"))
	assert.Error(t, ValidateSpec("* * * * *"), "five fields are rejected")
}

func TestNewRefillScheduler_InvalidSpec(t *testing.T) {
	_, err := NewRefillScheduler("bogus", &fakeRefiller{}, time.Second)
	assert.Error(t, err)
}

func TestRefillScheduler_RunOnce(t *testing.T) {
	f := &fakeRefiller{}
	s, err := NewRefillScheduler(DefaultRefillSpec, f, time.Second)
	require.NoError(t, err)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRefillScheduler_RunsOnSchedule(t *testing.T) {
	f := &fakeRefiller{}
	s, err := NewRefillScheduler("* * * * * *", f, time.Second)
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return f.calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestRefillScheduler_ErrorIsLogged(t *testing.T) {
	f := &fakeRefiller{err: errors.New("backend down")}
	s, err := NewRefillScheduler(DefaultRefillSpec, f, time.Second)
	require.NoError(t, err)
	s.run()
	assert.Equal(t, int32(1), f.calls.Load())
}
