package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func newTestInterval(rpm int, clk *fakeClock) (*Interval, *[]time.Duration) {
	iv := NewInterval(rpm, clk.Now)
	var slept []time.Duration
	iv.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clk.now = clk.now.Add(d)
		return nil
	}
	return iv, &slept
}

func TestWaitFirstCallNeverWaits(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	iv, slept := newTestInterval(10, clk)

	require.NoError(t, iv.Wait(context.Background()))
	assert.Empty(t, *slept)
}

func TestWaitEnforcesMinimumGap(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	iv, slept := newTestInterval(10, clk) // 6s minimum gap

	require.NoError(t, iv.Wait(context.Background()))
	iv.Done()

	clk.now = clk.now.Add(2 * time.Second)
	require.NoError(t, iv.Wait(context.Background()))

	require.Len(t, *slept, 1)
	assert.Equal(t, 4*time.Second, (*slept)[0])
}

func TestWaitSkipsWhenGapAlreadyElapsed(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	iv, slept := newTestInterval(10, clk)

	require.NoError(t, iv.Wait(context.Background()))
	iv.Done()

	clk.now = clk.now.Add(7 * time.Second)
	require.NoError(t, iv.Wait(context.Background()))
	assert.Empty(t, *slept)
}

func TestWaitDisabledWithoutLimit(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	iv, slept := newTestInterval(0, clk)

	for range 5 {
		require.NoError(t, iv.Wait(context.Background()))
		iv.Done()
	}
	assert.Empty(t, *slept)
}

func TestWaitCancelledContext(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	iv, slept := newTestInterval(10, clk)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := iv.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *slept)
}

func TestSleepCtxHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleepCtx(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
