package recorder

import (
	"sync"

	"github.com/roach88/solvelog/internal/event"
)

// Batch is one observation instant's worth of candidate events.
type Batch struct {
	Candidates []event.Candidate

	// ObservedAt stamps candidates that carry no timestamp. Zero means the
	// session clock is read when the batch is processed.
	ObservedAt int64
}

// Queue is a thread-safe FIFO of candidate batches. Sensing adapters push
// from any goroutine; Session.Run is the only consumer.
//
// A buffered signal channel of size one wakes the consumer; Close closes it
// so that a waiting consumer returns.
type Queue struct {
	mu       sync.Mutex
	batches  []Batch
	capacity int
	closed   bool
	signal   chan struct{}
}

// NewQueue creates a queue holding at most capacity batches. A capacity of
// zero or less means unbounded.
func NewQueue(capacity int) *Queue {
	return &Queue{
		batches:  make([]Batch, 0, 16),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Push appends b. It returns false when the queue is closed or full.
func (q *Queue) Push(b Batch) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.capacity > 0 && len(q.batches) >= q.capacity {
		return false
	}
	q.batches = append(q.batches, b)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes the front batch without blocking.
func (q *Queue) TryPop() (Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) == 0 {
		return Batch{}, false
	}
	b := q.batches[0]
	q.batches[0] = Batch{}
	if len(q.batches) == 1 {
		q.batches = q.batches[:0]
	} else {
		q.batches = q.batches[1:]
	}
	return b, true
}

// Wait returns a channel that fires when batches may be available, or is
// closed once the queue is closed.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued batches.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// Close stops further pushes. Queued batches can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
