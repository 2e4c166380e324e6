// Package queue provides the FIFO containers behind the per-channel telegram queues.
package queue

// Queue defines the interface for a non-blocking FIFO container.
type Queue[T any] interface {
	// Enqueue adds an item to the tail of the queue.
	Enqueue(T)
	// Dequeue removes and returns the item at the head of the queue.
	// ok is false when the queue is empty.
	Dequeue() (item T, ok bool)
	// Peek returns the item at the head of the queue without removing it.
	Peek() (item T, ok bool)
	// Reset to an empty queue
	Reset()
	// IsEmpty returns true if the queue is empty, false otherwise.
	IsEmpty() bool
	// Length returns the number of items in the queue.
	Length() int
}
