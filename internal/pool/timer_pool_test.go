package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Reuse Stopped Timer", func(t *testing.T) {
		timer1 := GetTimer(time.Second)
		assert.NotNil(timer1)
		PutTimer(timer1)

		begin := time.Now()
		timer2 := GetTimer(20 * time.Millisecond)
		select {
		case tt := <-timer2.C:
			assert.GreaterOrEqual(tt.Sub(begin), 15*time.Millisecond)
		case <-time.After(time.Second):
			t.Error("timer2 should have fired")
		}
		PutTimer(timer2)
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(5 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestWaitFor(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	t.Run("Done", func(t *testing.T) {
		done := make(chan struct{})
		close(done)
		assert.NoError(WaitFor(ctx, done, time.Second))
		assert.NoError(WaitFor(ctx, done, 0))
	})

	t.Run("Timeout", func(t *testing.T) {
		assert.ErrorIs(WaitFor(ctx, make(chan struct{}), 10*time.Millisecond), ErrTimeout)
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(WaitFor(cctx, make(chan struct{}), time.Second), context.Canceled)
		assert.ErrorIs(WaitFor(cctx, make(chan struct{}), 0), context.Canceled)
	})
}
