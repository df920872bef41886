package rate

import (
	"context"
	"time"
)

// Interval enforces a minimum wall-clock gap between consecutive
// capability calls, derived from a requests-per-minute budget. It is
// the only suspension point in the pipeline. Not safe for concurrent
// use; every invocation creates its own Interval.
type Interval struct {
	min   time.Duration
	clk   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	last  time.Time
}

// NewInterval derives the minimum gap from rpm. rpm <= 0 disables
// pacing. clk may be nil, in which case time.Now is used.
func NewInterval(rpm int, clk func() time.Time) *Interval {
	if clk == nil {
		clk = time.Now
	}
	var min time.Duration
	if rpm > 0 {
		min = time.Duration(float64(time.Minute) / float64(rpm))
	}
	return &Interval{min: min, clk: clk, sleep: sleepCtx}
}

// Wait blocks until the minimum interval since the previous Done has
// elapsed, or until ctx is cancelled. The first call never waits.
func (i *Interval) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if i.min <= 0 || i.last.IsZero() {
		return nil
	}
	elapsed := i.clk().Sub(i.last)
	if elapsed >= i.min {
		return nil
	}
	return i.sleep(ctx, i.min-elapsed)
}

// Done records the completion time of a capability call. The gap is
// measured against completion, not issue time.
func (i *Interval) Done() {
	i.last = i.clk()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
