package recorder

import (
	"context"
	"log/slog"
)

// Run drains q into the session until ctx is cancelled or q is closed and
// empty. Batches are applied one at a time in queue order.
//
// Run returns nil when the queue is closed and ctx.Err() on cancellation. It
// does not close the session.
func (s *Session) Run(ctx context.Context, q *Queue) error {
	slog.Debug("session run loop starting", "identity", s.identity)

	for {
		b, ok := q.TryPop()
		if ok {
			s.observer.QueueDepth(q.Len())
			s.process(ctx, b)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("session run loop stopping: context cancelled", "identity", s.identity)
			return ctx.Err()
		case _, open := <-q.Wait():
			if !open && q.Len() == 0 {
				slog.Debug("session run loop stopping: queue closed", "identity", s.identity)
				return nil
			}
		}
	}
}

func (s *Session) process(ctx context.Context, b Batch) {
	observedAt := b.ObservedAt
	if observedAt == 0 {
		observedAt = s.clock.Now()
	}
	// Write failures are logged by the flusher; the log itself is intact.
	if _, err := s.Accept(ctx, b.Candidates, observedAt); err != nil {
		slog.Error("batch processing failed", "identity", s.identity, "error", err)
	}
}
