package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_RunsTasksAndCountsOutcomes(t *testing.T) {
	pool := NewPool(2, 10, time.Second, zap.NewNop())
	pool.Start()

	var ran atomic.Int32
	require.True(t, pool.Submit("ok", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}))
	require.True(t, pool.Submit("error", func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("boom")
	}))
	require.True(t, pool.Submit("panic", func(ctx context.Context) error {
		ran.Add(1)
		panic("kaboom")
	}))

	require.NoError(t, pool.Stop(context.Background()))

	assert.Equal(t, int32(3), ran.Load())
	stats := pool.Stats()
	assert.Equal(t, int64(3), stats.Submitted)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(2), stats.Failed)
}

func TestPool_DropsWhenQueueFull(t *testing.T) {
	pool := NewPool(1, 1, time.Second, zap.NewNop())

	// sin arrancar, la cola se llena con una tarea
	assert.True(t, pool.Submit("first", func(ctx context.Context) error { return nil }))
	assert.False(t, pool.Submit("second", func(ctx context.Context) error { return nil }))
	assert.Equal(t, int64(1), pool.Stats().Dropped)

	require.NoError(t, pool.Stop(context.Background()))
	assert.Equal(t, int64(1), pool.Stats().Completed)
}

func TestPool_RejectsAfterStop(t *testing.T) {
	pool := NewPool(1, 5, time.Second, zap.NewNop())
	pool.Start()
	require.NoError(t, pool.Stop(context.Background()))

	assert.False(t, pool.Submit("late", func(ctx context.Context) error { return nil }))
	// Stop es idempotente
	assert.NoError(t, pool.Stop(context.Background()))
}

func TestPool_TaskContextHasTimeout(t *testing.T) {
	pool := NewPool(1, 1, 20*time.Millisecond, zap.NewNop())
	pool.Start()

	var gotErr atomic.Value
	pool.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		gotErr.Store(ctx.Err())
		return ctx.Err()
	})

	require.NoError(t, pool.Stop(context.Background()))
	assert.ErrorIs(t, gotErr.Load().(error), context.DeadlineExceeded)
}
