package scheduler

import (
	"sync"
	"time"
)

// workItem travels from the tick loop to the workers. It carries only
// the job id; the registry stays the source of truth for what to run,
// so a removed job cannot execute from a stale queue entry. A nil
// workItem is the shutdown sentinel.
type workItem struct {
	jobID string
}

// executionQueue is the unbounded FIFO hand-off between the tick loop
// and the worker pool. Enqueue never blocks; dequeue blocks with a
// timeout so workers can periodically re-check liveness even when idle.
type executionQueue struct {
	mu     sync.Mutex
	items  []*workItem
	signal chan struct{}
}

func newExecutionQueue() *executionQueue {
	return &executionQueue{
		signal: make(chan struct{}, 1),
	}
}

func (q *executionQueue) enqueue(it *workItem) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// dequeue pops the oldest item, waiting up to timeout for one to
// arrive. The second result is false on timeout.
func (q *executionQueue) dequeue(timeout time.Duration) (*workItem, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			// Wake another worker when more work is pending. The signal
			// channel holds at most one nudge, so a burst of enqueues can
			// collapse into a single wakeup.
			if remaining > 0 {
				select {
				case q.signal <- struct{}{}:
				default:
				}
			}
			return it, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-deadline.C:
			return nil, false
		}
	}
}

// rotate returns a fresh queue carrying over every pending work item.
// Shutdown sentinels stay behind on the receiver, so workers from a
// previous pool that outlived the shutdown deadline still find their
// exit signal instead of leaking it to the next pool.
func (q *executionQueue) rotate() *executionQueue {
	fresh := newExecutionQueue()

	q.mu.Lock()
	var sentinels []*workItem
	for _, it := range q.items {
		if it == nil {
			sentinels = append(sentinels, it)
			continue
		}
		fresh.items = append(fresh.items, it)
	}
	q.items = sentinels
	q.mu.Unlock()

	if len(fresh.items) > 0 {
		select {
		case fresh.signal <- struct{}{}:
		default:
		}
	}
	return fresh
}

func (q *executionQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
