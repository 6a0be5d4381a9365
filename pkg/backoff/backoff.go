// Package backoff implements the crawl's sole backpressure mechanism: a sleep
// of uniformly random duration drawn from a configured range. There is no
// exponential component; the portal responds well to flat pacing.
package backoff

import (
	"context"
	"math/rand"
	"time"

	"tadcatch/pkg/config"
	"tadcatch/pkg/logger"
)

// Sleeper draws pacing sleeps from the configured ranges.
type Sleeper struct {
	cfg config.BackoffConfig
	log logger.Logger
}

// New creates a Sleeper from the backoff configuration.
func New(cfg config.BackoffConfig, log logger.Logger) *Sleeper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Sleeper{cfg: cfg, log: log}
}

// Duration samples a uniform duration from [min, max] whole seconds with
// centisecond granularity.
func Duration(minSec, maxSec int) time.Duration {
	if maxSec <= minSec {
		return time.Duration(minSec) * time.Second
	}
	span := (maxSec - minSec) * 100
	centis := minSec*100 + rand.Intn(span)
	return time.Duration(centis) * 10 * time.Millisecond
}

// Pace sleeps for the standard inter-request range. Used between pagination
// steps and before each media fetch attempt.
func (s *Sleeper) Pace(ctx context.Context) error {
	return s.sleep(ctx, s.cfg.MinSleep, s.cfg.MaxSleep)
}

// Failure sleeps for the wider post-failure range before a fetch is retried.
func (s *Sleeper) Failure(ctx context.Context) error {
	return s.sleep(ctx, s.cfg.FailureMinSleep, s.cfg.FailureMaxSleep)
}

// Settle sleeps long enough for a freshly navigated month page to load.
func (s *Sleeper) Settle(ctx context.Context) error {
	return s.sleep(ctx, s.cfg.SettleMinSleep, s.cfg.SettleMaxSleep)
}

// Sleep sleeps for a duration drawn from an explicit [min, max] second range.
func (s *Sleeper) Sleep(ctx context.Context, minSec, maxSec int) error {
	return s.sleep(ctx, minSec, maxSec)
}

func (s *Sleeper) sleep(ctx context.Context, minSec, maxSec int) error {
	d := Duration(minSec, maxSec)
	s.log.DebugWithFields("sleeping", map[string]interface{}{
		"duration": d,
	})
	return Wait(ctx, d)
}

// Wait waits for the specified duration or until the context is cancelled.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
