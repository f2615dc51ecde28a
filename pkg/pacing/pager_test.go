package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagerDisabled(t *testing.T) {
	t.Run("zero interval", func(t *testing.T) {
		pager := NewPager(0)
		for i := 0; i < 5; i++ {
			require.NoError(t, pager.Wait(context.Background()))
		}
	})

	t.Run("nil pager", func(t *testing.T) {
		var pager *Pager
		require.NoError(t, pager.Wait(context.Background()))
	})
}

func TestPagerFirstCallImmediate(t *testing.T) {
	pager := NewPager(time.Minute)

	start := time.Now()
	require.NoError(t, pager.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPagerSpacesCalls(t *testing.T) {
	pager := NewPager(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, pager.Wait(ctx))
	start := time.Now()
	require.NoError(t, pager.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestPagerContextCanceled(t *testing.T) {
	pager := NewPager(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, pager.Wait(ctx))
	cancel()
	err := pager.Wait(ctx)
	assert.Error(t, err)
}

func TestPagerCanceledContextWhenDisabled(t *testing.T) {
	pager := NewPager(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pager.Wait(ctx), context.Canceled)
}
