package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBlockingQueue_FIFO(t *testing.T) {
	require := require.New(t)

	q := NewBlockingQueue[[]byte]()
	for _, s := range []string{"a", "b", "c"} {
		require.True(q.Push([]byte(s)))
	}
	require.Equal(3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Pop(time.Second)
		require.NoError(err)
		require.Equal(want, string(got))
	}
}

func TestBlockingQueue_Timeout(t *testing.T) {
	require := require.New(t)

	q := NewBlockingQueue[int]()
	start := time.Now()
	_, err := q.Pop(50 * time.Millisecond)
	require.ErrorIs(err, ErrTimeout)
	require.GreaterOrEqual(time.Since(start), 45*time.Millisecond)
}

func TestBlockingQueue_PopWaitsForPush(t *testing.T) {
	require := require.New(t)

	q := NewBlockingQueue[int]()
	go func() {
		time.Sleep(30 * time.Millisecond)
		q.Push(42)
	}()

	v, err := q.Pop(0)
	require.NoError(err)
	require.Equal(42, v)
}

func TestBlockingQueue_CloseWakesAllWaiters(t *testing.T) {
	require := require.New(t)

	q := NewBlockingQueue[int]()

	const waiters = 3
	errs := make(chan error, waiters)
	var started sync.WaitGroup
	started.Add(waiters)
	for range waiters {
		go func() {
			started.Done()
			_, err := q.Pop(0)
			errs <- err
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)

	q.Close()
	q.Close()

	for range waiters {
		select {
		case err := <-errs:
			require.ErrorIs(err, ErrClosed)
		case <-time.After(time.Second):
			require.FailNow("waiter was not released by Close")
		}
	}

	// terminal state
	require.False(q.Push(1))
	_, err := q.Pop(10 * time.Millisecond)
	require.ErrorIs(err, ErrClosed)
	require.True(q.IsClosed())
}

func TestBlockingQueue_PendingItemsBeforeClose(t *testing.T) {
	require := require.New(t)

	q := NewBlockingQueue[string]()
	q.Push("late reply")
	q.Close()

	v, err := q.Pop(time.Second)
	require.NoError(err)
	require.Equal("late reply", v)

	_, err = q.Pop(time.Second)
	require.ErrorIs(err, ErrClosed)
}

func TestBlockingQueue_Drain(t *testing.T) {
	require := require.New(t)

	q := NewBlockingQueue[int]()
	q.Push(1)
	q.Push(2)
	require.Equal(2, q.Drain())
	require.Zero(q.Len())

	_, err := q.Pop(10 * time.Millisecond)
	require.ErrorIs(err, ErrTimeout)
}

func TestBlockingQueue_ConcurrentConsumers(t *testing.T) {
	require := require.New(t)

	q := NewBlockingQueue[int]()
	const total = 500

	var mu sync.Mutex
	seen := make(map[int]bool, total)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, err := q.Pop(0)
				if err != nil {
					return
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}

	for i := range total {
		q.Push(i)
	}
	require.Eventually(func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
	q.Close()
	wg.Wait()

	require.Len(seen, total)
}
