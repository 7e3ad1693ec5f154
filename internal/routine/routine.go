// Package routine runs goroutines with panic recovery so a failing background
// fetch or job cannot take the whole process down.
package routine

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/proenglish/go_proenglish/internal/logger"
	"github.com/sirupsen/logrus"
)

// Runner starts tracked goroutines. Wait blocks until all of them returned.
type Runner struct {
	log *logrus.Entry
	wg  sync.WaitGroup
}

// New creates a Runner logging recovered panics under the given component.
func New(component string) *Runner {
	return &Runner{log: logger.WithComponent(component)}
}

// Go executes fn in a new goroutine with panic recovery.
func (r *Runner) Go(fn func()) {
	r.GoNamed("", fn)
}

// GoNamed executes fn in a new goroutine; name is attached to panic logs.
func (r *Runner) GoNamed(name string, fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.recover(name)
		fn()
	}()
}

// GoNamedWithContext is GoNamed for functions that take a context.
func (r *Runner) GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.recover(name)
		fn(ctx)
	}()
}

// Wait waits for all goroutines started by this runner to complete.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) recover(name string) {
	if rec := recover(); rec != nil {
		entry := r.log.WithField("panic", rec).WithField("stack", string(debug.Stack()))
		if name != "" {
			entry = entry.WithField("routine", name)
		}
		entry.Error("goroutine panicked")
	}
}

// Safe calls fn and converts a panic into a recovered value. It reports
// whether fn panicked.
func Safe(fn func()) (panicked bool, value any) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			value = rec
		}
	}()
	fn()
	return false, nil
}
