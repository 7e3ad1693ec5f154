package practice

import (
	"context"
	"fmt"
	"time"

	"github.com/proenglish/go_proenglish/internal/logger"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultRefillSpec refills hearts at the top of every hour.
const DefaultRefillSpec = "0 0 * * * *"

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec is a valid six-field cron expression.
func ValidateSpec(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("practice: invalid refill spec %q: %w", spec, err)
	}
	return nil
}

// Refiller restores every student's hearts.
type Refiller interface {
	RefillAllHearts(ctx context.Context) (int, error)
}

// RefillScheduler runs the hearts refill on a cron schedule.
type RefillScheduler struct {
	cron     *cron.Cron
	refiller Refiller
	timeout  time.Duration
	log      *logrus.Entry
}

// NewRefillScheduler registers the refill job. Start must be called to run it.
func NewRefillScheduler(spec string, refiller Refiller, timeout time.Duration) (*RefillScheduler, error) {
	log := logger.WithComponent("hearts-refill")
	s := &RefillScheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cron.PrintfLogger(log)), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		refiller: refiller,
		timeout:  timeout,
		log:      log,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("practice: add refill job with spec %s: %w", spec, err)
	}
	return s, nil
}

// Start begins the cron scheduler.
func (s *RefillScheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running refill to complete.
func (s *RefillScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs a single refill.
func (s *RefillScheduler) RunOnce(ctx context.Context) (int, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.refiller.RefillAllHearts(ctx)
}

func (s *RefillScheduler) run() {
	n, err := s.RunOnce(context.Background())
	if err != nil {
		s.log.Errorf("hearts refill failed: %v", err)
		return
	}
	s.log.Infof("hearts refilled for %d students", n)
}
