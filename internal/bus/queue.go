// Package bus carries externally produced events into the dispatch
// loop. Producers never block and never touch engine state; the
// dispatch goroutine drains the queue at the start of each tick.
package bus

import (
	"sync/atomic"

	"main/internal/model"
	"main/pkg/exception"
)

// Queue is a bounded, non-blocking notification queue.
type Queue struct {
	ch     chan model.Notification
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan model.Notification, capacity)}
}

// TryPublish enqueues a notification without blocking.
func (q *Queue) TryPublish(n model.Notification) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrOrderQueueClosed
	}
	select {
	case q.ch <- n:
		return nil
	default:
		return exception.ErrOrderQueueFull
	}
}

// Drain removes every queued notification without blocking.
func (q *Queue) Drain() []model.Notification {
	var out []model.Notification
	for {
		select {
		case n, ok := <-q.ch:
			if !ok {
				return out
			}
			out = append(out, n)
		default:
			return out
		}
	}
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new notifications.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}
