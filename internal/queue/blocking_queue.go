package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/arloliu/go-thales/internal/pool"
)

var (
	// ErrClosed is returned by Pop once the queue is closed and every pending item was consumed.
	ErrClosed = errors.New("queue closed")
	// ErrTimeout is returned by Pop when no item arrived within the timeout.
	ErrTimeout = errors.New("queue pop timeout")
)

// BlockingQueue is an unbounded FIFO with blocking Pop and a terminal closed state.
//
// Close wakes every blocked consumer. Items pushed before Close are still delivered, after that
// Pop returns ErrClosed for every caller, forever.
type BlockingQueue[T any] struct {
	mu     sync.Mutex
	items  Queue[T]
	closed bool
	notify chan struct{} // capacity 1, signals that items may be available
	done   chan struct{} // closed by Close
}

// NewBlockingQueue creates an empty, open BlockingQueue.
func NewBlockingQueue[T any]() *BlockingQueue[T] {
	return &BlockingQueue[T]{
		items:  NewSliceQueue[T](8),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends item to the queue. It returns false if the queue is already closed.
func (q *BlockingQueue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items.Enqueue(item)
	q.mu.Unlock()

	q.signal()

	return true
}

// Pop removes and returns the head of the queue, waiting up to timeout for an item.
// A timeout <= 0 waits until an item arrives or the queue is closed.
func (q *BlockingQueue[T]) Pop(timeout time.Duration) (T, error) {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := pool.GetTimer(timeout)
		defer pool.PutTimer(timer)
		timeoutC = timer.C
	}

	for {
		q.mu.Lock()
		item, ok := q.items.Dequeue()
		more := !q.items.IsEmpty()
		closed := q.closed
		q.mu.Unlock()

		if ok {
			if more {
				// hand the wake-up over to the next waiting consumer
				q.signal()
			}
			return item, nil
		}
		if closed {
			var zero T
			return zero, ErrClosed
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-timeoutC:
			var zero T
			return zero, ErrTimeout
		}
	}
}

// Drain discards all pending items and returns how many were dropped.
func (q *BlockingQueue[T]) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.items.Length()
	q.items.Reset()

	return n
}

// Len returns the number of pending items.
func (q *BlockingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Length()
}

// Close moves the queue into its terminal state and wakes all blocked consumers.
// Calling Close more than once has no effect.
func (q *BlockingQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// IsClosed reports whether Close has been called.
func (q *BlockingQueue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

func (q *BlockingQueue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
