package fifoqueue

import (
	"fmt"
	"sync"

	"github.com/ef-ds/deque"
)

// QueueLengthObserver is a callback that observes the length of the queue
// after each push or pop.
type QueueLengthObserver func(int)

// FifoQueue implements a FIFO queue with max capacity and length observers.
// Elements that exceed the queue's capacity are silently dropped.
type FifoQueue struct {
	mu             sync.RWMutex
	queue          deque.Deque
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// ConstructorOption customizes queue construction.
type ConstructorOption func(*FifoQueue) error

// WithLengthObserver adds a length observer to the queue. The observer is
// called from within the queue's lock and must be non-blocking.
func WithLengthObserver(callback QueueLengthObserver) ConstructorOption {
	return func(queue *FifoQueue) error {
		if callback == nil {
			return fmt.Errorf("nil is not a valid QueueLengthObserver")
		}
		queue.lengthObserver = callback
		return nil
	}
}

// NewFifoQueue creates a FIFO queue with the given capacity.
func NewFifoQueue(maxCapacity int, options ...ConstructorOption) (*FifoQueue, error) {
	if maxCapacity < 1 {
		return nil, fmt.Errorf("capacity for fifo queue must be positive, got %d", maxCapacity)
	}
	queue := &FifoQueue{
		maxCapacity:    maxCapacity,
		lengthObserver: func(int) {},
	}
	for _, opt := range options {
		if err := opt(queue); err != nil {
			return nil, fmt.Errorf("failed to apply constructor option: %w", err)
		}
	}
	return queue, nil
}

// Push appends the given value to the tail of the queue. If the queue is at
// capacity, the value is dropped and Push returns false.
func (q *FifoQueue) Push(element interface{}) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.queue.Len() >= q.maxCapacity {
		return false
	}
	q.queue.PushBack(element)
	q.lengthObserver(q.queue.Len())
	return true
}

// Pop removes and returns the queue's head element. Returns false if the
// queue is empty.
func (q *FifoQueue) Pop() (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	element, ok := q.queue.PopFront()
	if !ok {
		return nil, false
	}
	q.lengthObserver(q.queue.Len())
	return element, true
}

// Head peeks at the queue's head element without removing it. Returns false
// if the queue is empty.
func (q *FifoQueue) Head() (interface{}, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.queue.Front()
}

// Len returns the current length of the queue.
func (q *FifoQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.queue.Len()
}
