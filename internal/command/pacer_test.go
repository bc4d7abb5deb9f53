package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_Defaults(t *testing.T) {
	p := NewPacer(Pacing{})
	assert.Equal(t, 2*time.Second, p.interval)
	assert.Equal(t, 8*time.Second, p.tolerance)
}

func TestPacer_BurstThenSpacing(t *testing.T) {
	clock := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	p := NewPacer(Pacing{PerMinute: 60, Burst: 3})
	p.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		require.Zero(t, p.reserve(), "burst call %d", i)
	}
	assert.Equal(t, time.Second, p.reserve())

	clock = clock.Add(time.Second)
	assert.Zero(t, p.reserve())
	assert.Equal(t, time.Second, p.reserve())

	// A long idle period refills the burst but never beyond it.
	clock = clock.Add(time.Hour)
	for i := 0; i < 3; i++ {
		require.Zero(t, p.reserve(), "refilled call %d", i)
	}
	assert.Positive(t, p.reserve())
}

func TestPacer_WaitSleepsUntilDue(t *testing.T) {
	p := NewPacer(Pacing{PerMinute: 600, Burst: 1})
	ctx := context.Background()
	require.NoError(t, p.Wait(ctx))

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPacer_WaitHonorsContext(t *testing.T) {
	p := NewPacer(Pacing{PerMinute: 1, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Wait(ctx))

	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}
