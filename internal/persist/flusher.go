package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/solvelog/internal/record"
)

// DefaultWriteTimeout bounds a single storage write.
const DefaultWriteTimeout = 10 * time.Second

// Result is the outcome of one flush.
type Result struct {
	Identity string

	// Events is the length of the flushed log.
	Events int

	// Superseded is set when the write was skipped because a longer log for
	// the same identity had already been written.
	Superseded bool

	// Err is nil on success and a *StorageError otherwise.
	Err error

	Duration time.Duration
}

// OK reports whether the record is durably stored.
func (r Result) OK() bool {
	return r.Err == nil
}

// FlushObserver is notified of every completed flush.
type FlushObserver interface {
	Flushed(Result)
}

type noopObserver struct{}

func (noopObserver) Flushed(Result) {}

// FlusherOption configures a Flusher.
type FlusherOption func(*Flusher)

// WithWriteTimeout overrides DefaultWriteTimeout.
func WithWriteTimeout(d time.Duration) FlusherOption {
	return func(f *Flusher) {
		f.timeout = d
	}
}

// WithFlushObserver registers an observer for flush results.
func WithFlushObserver(o FlushObserver) FlusherOption {
	return func(f *Flusher) {
		f.observer = o
	}
}

type jobOp int

const (
	opPut jobOp = iota
	opDelete
)

type job struct {
	op   jobOp
	rec  *record.Record
	done chan Result
}

// lane serialises the writes of one identity.
type lane struct {
	pending []job
	running bool
	// written is the log length of the last successful put.
	written int
}

// Flusher writes records to a Storage asynchronously. Writes for the same
// identity run one at a time in submission order; writes for different
// identities run concurrently.
type Flusher struct {
	storage  Storage
	timeout  time.Duration
	observer FlushObserver

	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	wg     sync.WaitGroup
}

// NewFlusher creates a Flusher over storage.
func NewFlusher(storage Storage, opts ...FlusherOption) *Flusher {
	f := &Flusher{
		storage:  storage,
		timeout:  DefaultWriteTimeout,
		observer: noopObserver{},
		lanes:    make(map[string]*lane),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Submit queues a full overwrite of identity with rec and returns a channel
// that receives exactly one Result. rec must not be modified afterwards.
func (f *Flusher) Submit(identity string, rec *record.Record) <-chan Result {
	return f.enqueue(identity, job{op: opPut, rec: rec})
}

// Flush writes rec and waits for the outcome.
func (f *Flusher) Flush(ctx context.Context, identity string, rec *record.Record) error {
	return wait(ctx, f.Submit(identity, rec))
}

// Delete removes identity from storage after any queued writes for it have
// run, and resets the lane so that a shorter log may be written next.
func (f *Flusher) Delete(ctx context.Context, identity string) error {
	return wait(ctx, f.enqueue(identity, job{op: opDelete}))
}

// Close waits for every queued write to finish. Later submissions fail with
// ErrClosed.
func (f *Flusher) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}

func wait(ctx context.Context, ch <-chan Result) error {
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Flusher) enqueue(identity string, j job) <-chan Result {
	j.done = make(chan Result, 1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		j.done <- Result{Identity: identity, Err: &StorageError{Op: j.op.String(), Identity: identity, Err: ErrClosed}}
		return j.done
	}

	l, ok := f.lanes[identity]
	if !ok {
		l = &lane{}
		f.lanes[identity] = l
	}
	l.pending = append(l.pending, j)
	if !l.running {
		l.running = true
		f.wg.Add(1)
		go f.drain(identity, l)
	}
	return j.done
}

func (f *Flusher) drain(identity string, l *lane) {
	defer f.wg.Done()
	for {
		f.mu.Lock()
		if len(l.pending) == 0 {
			l.running = false
			f.mu.Unlock()
			return
		}
		j := l.pending[0]
		l.pending = l.pending[1:]
		written := l.written
		f.mu.Unlock()

		res := f.run(identity, j, written)

		f.mu.Lock()
		switch {
		case j.op == opDelete && (res.Err == nil || errors.Is(res.Err, ErrNotFound)):
			l.written = 0
		case j.op == opPut && res.Err == nil && !res.Superseded:
			l.written = res.Events
		}
		f.mu.Unlock()

		if j.op == opPut {
			f.observer.Flushed(res)
		}
		j.done <- res
	}
}

func (f *Flusher) run(identity string, j job, written int) Result {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	start := time.Now()
	res := Result{Identity: identity}

	switch j.op {
	case opPut:
		res.Events = len(j.rec.Events)
		if res.Events < written {
			res.Superseded = true
			slog.Debug("flush superseded", "identity", identity, "events", res.Events, "written", written)
			return res
		}
		if err := f.storage.Put(ctx, identity, j.rec); err != nil {
			res.Err = &StorageError{Op: "put", Identity: identity, Err: err}
		}
	case opDelete:
		if err := f.storage.Delete(ctx, identity); err != nil {
			res.Err = &StorageError{Op: "delete", Identity: identity, Err: err}
		}
	}
	res.Duration = time.Since(start)

	if res.Err != nil {
		slog.Error("flush failed", "identity", identity, "error", res.Err)
	}
	return res
}

func (o jobOp) String() string {
	if o == opDelete {
		return "delete"
	}
	return "put"
}
