package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-robocomm/logger"
)

func TestManager_Loop(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewNopMockLogger())

	var calls atomic.Int32
	err := mgr.Loop("counter", func(ctx context.Context) bool {
		calls.Add(1)
		time.Sleep(time.Millisecond)
		return true
	})
	require.NoError(err)
	require.Eventually(func() bool { return calls.Load() > 3 }, time.Second, time.Millisecond)
	require.Equal(1, mgr.Count())

	mgr.Stop()
	mgr.Wait()
	require.Equal(0, mgr.Count())
}

func TestManager_LoopReturnsFalse(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewNopMockLogger())

	var calls atomic.Int32
	require.NoError(mgr.Loop("once", func(ctx context.Context) bool {
		calls.Add(1)
		return false
	}))

	mgr.Wait()
	require.Equal(int32(1), calls.Load())
}

func TestManager_Go(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewNopMockLogger())

	done := make(chan struct{})
	require.NoError(mgr.Go("blocker", func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	}))

	mgr.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail("task did not observe cancellation")
	}
	mgr.Wait()

	// the manager is usable again after Wait
	require.NoError(mgr.Go("again", func(ctx context.Context) {}))
	mgr.Wait()
}

func TestManager_Panic(t *testing.T) {
	require := require.New(t)

	mockLogger := logger.NewNopMockLogger()
	mgr := NewManager(context.Background(), mockLogger)

	require.NoError(mgr.Loop("panicky", func(ctx context.Context) bool {
		panic("boom")
	}))
	mgr.Wait()

	require.Equal(0, mgr.Count())
	mockLogger.AssertCalled(t, "Error", "panic in task", []any{"name", "panicky", "panic", "boom"})

	require.False(mgr.Call("call", func() { panic("again") }))
	require.True(mgr.Call("call", func() {}))
}

func TestManager_ParentCancelled(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	mgr := NewManager(ctx, logger.NewNopMockLogger())
	cancel()

	require.ErrorIs(mgr.Go("late", func(ctx context.Context) {}), ErrStopped)
}
