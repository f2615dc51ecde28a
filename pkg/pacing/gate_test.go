package pacing

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateFirstCallImmediate(t *testing.T) {
	clock := NewFakeClock(time.Unix(1000, 0))
	gate := NewGate(time.Second, WithGateClock(clock))

	require.NoError(t, gate.Wait(context.Background()))
	assert.Empty(t, clock.Slept(), "first call should not wait")
}

func TestGateSpacesCalls(t *testing.T) {
	clock := NewFakeClock(time.Unix(1000, 0))
	gate := NewGate(time.Second, WithGateClock(clock))
	ctx := context.Background()

	require.NoError(t, gate.Wait(ctx))
	gate.Done()

	require.NoError(t, gate.Wait(ctx))
	require.Len(t, clock.Slept(), 1)
	assert.Equal(t, time.Second, clock.Slept()[0])
}

func TestGateMeasuresFromCompletion(t *testing.T) {
	clock := NewFakeClock(time.Unix(1000, 0))
	gate := NewGate(time.Second, WithGateClock(clock))
	ctx := context.Background()

	require.NoError(t, gate.Wait(ctx))
	clock.Advance(700 * time.Millisecond) // the call itself takes time
	gate.Done()

	require.NoError(t, gate.Wait(ctx))
	require.Len(t, clock.Slept(), 1)
	assert.Equal(t, time.Second, clock.Slept()[0],
		"interval restarts when the call completes, not when it starts")
}

func TestGateElapsedIntervalPasses(t *testing.T) {
	clock := NewFakeClock(time.Unix(1000, 0))
	gate := NewGate(time.Second, WithGateClock(clock))
	ctx := context.Background()

	require.NoError(t, gate.Wait(ctx))
	gate.Done()
	clock.Advance(time.Second + time.Millisecond)

	require.NoError(t, gate.Wait(ctx))
	assert.Empty(t, clock.Slept(), "interval already elapsed")
}

func TestGateInFlightCallHoldsSlot(t *testing.T) {
	clock := NewFakeClock(time.Unix(1000, 0))
	gate := NewGate(time.Second, WithGateClock(clock))
	ctx := context.Background()

	require.NoError(t, gate.Wait(ctx))

	// No Done yet: the next caller still waits a full interval from the
	// start of the in-flight call.
	require.NoError(t, gate.Wait(ctx))
	require.Len(t, clock.Slept(), 1)
	assert.Equal(t, time.Second, clock.Slept()[0])
}

func TestGateDisabled(t *testing.T) {
	t.Run("zero interval", func(t *testing.T) {
		clock := NewFakeClock(time.Unix(1000, 0))
		gate := NewGate(0, WithGateClock(clock))

		require.NoError(t, gate.Wait(context.Background()))
		require.NoError(t, gate.Wait(context.Background()))
		gate.Done()
		assert.Empty(t, clock.Slept())
	})

	t.Run("nil gate", func(t *testing.T) {
		var gate *Gate
		require.NoError(t, gate.Wait(context.Background()))
		gate.Done()
	})
}

func TestGateContextCanceled(t *testing.T) {
	clock := NewFakeClock(time.Unix(1000, 0))
	gate := NewGate(time.Second, WithGateClock(clock))
	ctx := context.Background()

	require.NoError(t, gate.Wait(ctx))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err := gate.Wait(canceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGateDo(t *testing.T) {
	clock := NewFakeClock(time.Unix(1000, 0))
	gate := NewGate(time.Second, WithGateClock(clock))
	ctx := context.Background()

	calls := 0
	for i := 0; i < 3; i++ {
		err := gate.Do(ctx, func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, calls)
	require.Len(t, clock.Slept(), 2, "second and third calls wait")
	assert.Equal(t, time.Second, clock.Slept()[0])
	assert.Equal(t, time.Second, clock.Slept()[1])
}

func TestGateDoPropagatesError(t *testing.T) {
	gate := NewGate(time.Second, WithGateClock(NewFakeClock(time.Unix(1000, 0))))

	want := assert.AnError
	err := gate.Do(context.Background(), func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestGateSharedAcrossGoroutines(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := NewFakeClock(start)
	gate := NewGate(time.Second, WithGateClock(clock))
	ctx := context.Background()

	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gate.Do(ctx, func(context.Context) error {
				calls.Add(1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), calls.Load())
	assert.GreaterOrEqual(t, clock.Now().Sub(start), 2*time.Second,
		"three calls need at least two full intervals between them")
}
