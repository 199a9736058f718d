package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/record"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(0)
	for i := int64(1); i <= 3; i++ {
		require.True(t, q.Push(Batch{ObservedAt: i}))
	}
	assert.Equal(t, 3, q.Len())

	for i := int64(1); i <= 3; i++ {
		b, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, b.ObservedAt)
	}
	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestQueue_Capacity(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.Push(Batch{}))
	assert.True(t, q.Push(Batch{}))
	assert.False(t, q.Push(Batch{}), "full queue refuses")

	q.TryPop()
	assert.True(t, q.Push(Batch{}))
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue(0)
	q.Push(Batch{ObservedAt: 1})
	q.Close()
	q.Close()

	assert.False(t, q.Push(Batch{}), "closed queue refuses")
	b, ok := q.TryPop()
	require.True(t, ok, "queued batches survive close")
	assert.Equal(t, int64(1), b.ObservedAt)

	// A pending signal may be delivered first; after that the channel
	// reads as closed.
	for i := 0; i < 2; i++ {
		select {
		case <-q.Wait():
		case <-time.After(time.Second):
			t.Fatal("Wait must not block after Close")
		}
	}
	_, open := <-q.Wait()
	assert.False(t, open)
}

func TestRun_DrainsQueueInOrder(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	q := NewQueue(16)
	q.Push(Batch{Candidates: []event.Candidate{cand(event.Start{})}, ObservedAt: 1000})
	q.Push(Batch{Candidates: []event.Candidate{cand(update(0, 0, "A"))}, ObservedAt: 1500})
	q.Push(Batch{Candidates: []event.Candidate{cand(event.Stop{})}, ObservedAt: 2000})
	q.Close()

	require.NoError(t, s.Run(context.Background(), q))

	events := s.Snapshot().Events
	assert.Equal(t, []event.Kind{event.KindStart, event.KindUpdate, event.KindStop}, kinds(events))
	assert.Equal(t, record.Stopped, s.Status())
	assert.Equal(t, 0, f.obs.depth)
}

func TestRun_UsesClockWithoutObservedAt(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	f.clock.Set(4242)

	q := NewQueue(0)
	q.Push(Batch{Candidates: []event.Candidate{cand(event.Start{})}})
	q.Close()
	require.NoError(t, s.Run(context.Background(), q))

	events := s.Snapshot().Events
	require.Len(t, events, 1)
	assert.Equal(t, int64(4242), events[0].Timestamp)
}

func TestRun_ContextCancel(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	q := NewQueue(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, q) }()

	q.Push(Batch{Candidates: []event.Candidate{cand(event.Start{})}, ObservedAt: 1})
	require.Eventually(t, func() bool { return s.Status() == record.Recording }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
