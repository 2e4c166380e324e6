package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-thales/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Start(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewNopMockLogger())

	var calls atomic.Int32
	err := mgr.Start("counter", func() bool {
		return calls.Add(1) < 5
	})
	require.NoError(err)

	mgr.Wait()
	require.EqualValues(5, calls.Load())
	require.Zero(mgr.TaskCount())
}

func TestManager_StartReceiver(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewNopMockLogger())

	var hdrLen atomic.Int32
	cancelled := make(chan struct{})
	err := mgr.StartReceiver("receiver", 3, func(hdr []byte) bool {
		hdrLen.Store(int32(len(hdr)))
		time.Sleep(time.Millisecond)
		return true
	}, func() { close(cancelled) })
	require.NoError(err)
	require.Eventually(func() bool { return mgr.TaskCount() == 1 }, time.Second, time.Millisecond)

	mgr.Stop()
	mgr.Wait()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		require.FailNow("cancel function not called")
	}
	require.EqualValues(3, hdrLen.Load())

	// Wait rearms the manager
	require.NoError(mgr.Start("again", func() bool { return false }))
	mgr.Wait()
}

func TestManager_StartInterval(t *testing.T) {
	assert := assert.New(t)

	mgr := NewManager(context.Background(), logger.NewNopMockLogger())

	var ticks atomic.Int32
	err := mgr.StartInterval("tick", func() bool {
		return ticks.Add(1) < 3
	}, 5*time.Millisecond, true)
	assert.NoError(err)

	assert.True(mgr.WaitTimeout(time.Second))
	assert.EqualValues(3, ticks.Load())

	assert.Error(mgr.StartInterval("bad", func() bool { return true }, 0, false))
}

func TestManager_PanicRecovered(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), logger.NewNopMockLogger())
	require.NoError(mgr.Start("panic", func() bool {
		panic("boom")
	}))
	require.True(mgr.WaitTimeout(time.Second))
}

func TestManager_StartAfterParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mgr := NewManager(ctx, logger.NewNopMockLogger())
	err := mgr.Start("late", func() bool { return false })
	require.ErrorIs(t, err, ErrStopped)
}
