package recorder

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/persist"
	"github.com/roach88/solvelog/internal/puzzle"
	"github.com/roach88/solvelog/internal/record"
	"github.com/roach88/solvelog/internal/testutil"
)

func testObservation() record.Observation {
	board := puzzle.Board{
		puzzle.Open(0, 0, ""), puzzle.Open(1, 0, ""),
		puzzle.Open(0, 1, ""), puzzle.Open(1, 1, ""),
	}
	board[0].Label = "1"
	board[1].Label = "2"
	board[2].Label = "3"
	return record.Observation{
		URL:   "https://www.nytimes.com/crosswords/game/mini",
		Title: "Mini",
		Date:  "2024-01-02",
		Board: board,
		Clues: puzzle.ClueIndex{
			"Across": {{Label: "1", Text: "Top"}, {Label: "3", Text: "Bottom"}},
			"Down":   {{Label: "1", Text: "Left"}, {Label: "2", Text: "Right"}},
		},
	}
}

type fixture struct {
	storage *persist.Memory
	flusher *persist.Flusher
	clock   *testutil.FakeClock
	obs     *countingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		storage: persist.NewMemory(),
		clock:   testutil.NewFakeClock(1_000),
		obs:     &countingObserver{},
	}
	f.flusher = persist.NewFlusher(f.storage)
	t.Cleanup(f.flusher.Close)
	return f
}

func (f *fixture) open(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{
		WithClock(f.clock),
		WithIDGenerator(testutil.NewFixedIDGenerator("rec-test")),
		WithObserver(f.obs),
	}, opts...)
	s, err := Open(context.Background(), f.storage, f.flusher, testObservation(), opts...)
	require.NoError(t, err)
	return s
}

func (f *fixture) stored(t *testing.T, s *Session) *record.Record {
	t.Helper()
	r, err := f.storage.Get(context.Background(), s.Identity())
	require.NoError(t, err)
	return r
}

func cand(p event.Payload) event.Candidate {
	return event.CandidateOf(p)
}

func candAt(ts int64, p event.Payload) event.Candidate {
	return event.FromEvent(event.At(ts, p))
}

func update(x, y int, fill string) event.Payload {
	return event.Update{Cell: event.Cell{X: x, Y: y}, Fill: fill}
}

func accept(t *testing.T, s *Session, at int64, cs ...event.Candidate) Outcome {
	t.Helper()
	out, err := s.Accept(context.Background(), cs, at)
	require.NoError(t, err)
	return out
}

func TestOpen_NewPuzzle(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	want, err := testObservation().Identity()
	require.NoError(t, err)
	assert.Equal(t, want, s.Identity())
	assert.Equal(t, "rec-test", s.RecordingID())
	assert.Equal(t, record.Unstarted, s.Status())
	assert.False(t, s.Disengaged())
}

func TestAccept_RejectsWithoutStartWhenUnstarted(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	out := accept(t, s, 1000, cand(update(0, 0, "A")))
	assert.True(t, out.Rejected)
	assert.Equal(t, RejectUnstarted, out.Reason)
	assert.Empty(t, s.Snapshot().Events)
	assert.Equal(t, 1, f.obs.rejected[RejectUnstarted])
}

func TestAccept_RejectionGuardWhenStopped(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	accept(t, s, 1000, cand(event.Start{}))
	accept(t, s, 2000, cand(event.Stop{}))
	require.Equal(t, record.Stopped, s.Status())
	before := s.Snapshot().Events

	out := accept(t, s, 3000, cand(update(0, 0, "A")))
	assert.True(t, out.Rejected)
	assert.Equal(t, RejectStopped, out.Reason)
	assert.Equal(t, before, s.Snapshot().Events)

	out = accept(t, s, 4000, cand(update(0, 0, "A")), cand(event.Start{}))
	assert.False(t, out.Rejected)
	assert.Equal(t, 2, out.Accepted)

	events := s.Snapshot().Events
	require.Len(t, events, 4)
	assert.Equal(t, event.KindStart, events[2].Kind(), "start sorts before the update at the same instant")
	assert.Equal(t, event.KindUpdate, events[3].Kind())
	assert.Equal(t, record.Recording, s.Status())
}

func TestAccept_StampsObservedAt(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	accept(t, s, 5000, cand(event.Start{}), candAt(4000, event.Select{Cell: event.Cell{X: 1, Y: 0}}))

	events := s.Snapshot().Events
	require.Len(t, events, 2)
	assert.Equal(t, int64(4000), events[0].Timestamp, "explicit timestamps are kept")
	assert.Equal(t, int64(5000), events[1].Timestamp)
}

func TestAccept_OrderingInvariant(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, WithPolicy(Policy{FlushThreshold: 0, LogLevel: LogFull}))
	accept(t, s, 0, candAt(0, event.Start{}))

	type tagged struct {
		ts   int64
		fill string
	}
	var batches [][]tagged
	for i := 0; i < 40; i++ {
		ts := int64(100 + (i%8)*10)
		batches = append(batches, []tagged{{ts, string(rune('A' + i%26))}})
	}
	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(batches), func(i, j int) { batches[i], batches[j] = batches[j], batches[i] })

	arrival := make(map[int64][]string)
	for _, b := range batches {
		var cs []event.Candidate
		for _, e := range b {
			cs = append(cs, candAt(e.ts, update(0, 0, e.fill)))
			arrival[e.ts] = append(arrival[e.ts], e.fill)
		}
		out := accept(t, s, 0, cs...)
		require.False(t, out.Rejected)
	}

	events := s.Snapshot().Events
	require.Len(t, events, 41)
	assert.True(t, event.Sorted(events))

	got := make(map[int64][]string)
	for _, e := range events[1:] {
		got[e.Timestamp] = append(got[e.Timestamp], e.Payload.(event.Update).Fill)
	}
	assert.Equal(t, arrival, got, "equal (timestamp, priority) events keep arrival order")
}

func TestAccept_DropsInvalidCandidates(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	bad := event.Candidate{Kind: event.KindUpdate, X: ptr(0), Y: ptr(0)}
	out := accept(t, s, 1000, cand(event.Start{}), bad, cand(update(1, 0, "B")))

	assert.False(t, out.Rejected)
	assert.Equal(t, 2, out.Accepted)
	require.Len(t, out.Dropped, 1)
	assert.Equal(t, "fill", out.Dropped[0].Field)
	assert.Equal(t, 1, f.obs.dropped)
	assert.Len(t, s.Snapshot().Events, 2)
}

func TestAccept_AllInvalidIsNoop(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	out := accept(t, s, 1000, event.Candidate{Kind: "bogus"})
	assert.False(t, out.Rejected)
	assert.Zero(t, out.Accepted)
	assert.Len(t, out.Dropped, 1)
}

func TestAccept_MinimalLogLevel(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, WithPolicy(Policy{FlushThreshold: 30, LogLevel: LogMinimal}))

	out := accept(t, s, 1000,
		cand(event.Start{}),
		cand(event.Select{Cell: event.Cell{X: 0, Y: 0}}),
		cand(event.SelectClue{Section: "Across", Label: "1"}),
		cand(update(0, 0, "A")),
	)
	assert.Equal(t, 2, out.Filtered)
	assert.Equal(t, 2, out.Accepted)
	assert.Equal(t, []event.Kind{event.KindStart, event.KindUpdate}, kinds(s.Snapshot().Events))
}

func TestAccept_FlushThreshold(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, WithPolicy(Policy{FlushThreshold: 3, LogLevel: LogFull}))

	out := accept(t, s, 1000, cand(event.Start{}))
	assert.Nil(t, out.Flush)
	out = accept(t, s, 1100, cand(update(0, 0, "A")))
	assert.Nil(t, out.Flush)
	out = accept(t, s, 1200, cand(update(1, 0, "B")))
	require.NotNil(t, out.Flush)
	require.NoError(t, (<-out.Flush).Err)

	assert.Len(t, f.stored(t, s).Events, 3)

	out = accept(t, s, 1300, cand(update(0, 1, "C")))
	assert.Nil(t, out.Flush, "counter restarts after a flush")
}

func TestAccept_FailedThresholdFlushIsRetriedByNextBatch(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, WithPolicy(Policy{FlushThreshold: 2, LogLevel: LogFull}))

	f.storage.FailPuts(errors.New("disk full"))
	out := accept(t, s, 1000, cand(event.Start{}))
	assert.Nil(t, out.Flush)
	out = accept(t, s, 1100, cand(update(0, 0, "A")))
	require.NotNil(t, out.Flush)
	require.Error(t, (<-out.Flush).Err)
	f.storage.FailPuts(nil)

	out = accept(t, s, 1200, cand(update(1, 0, "B")))
	require.NotNil(t, out.Flush, "unsaved events still count after a failed write")
	require.NoError(t, (<-out.Flush).Err)
	assert.Equal(t, 1, f.storage.Puts())
	assert.Len(t, f.stored(t, s).Events, 3)

	out = accept(t, s, 1300, cand(update(0, 1, "C")))
	assert.Nil(t, out.Flush, "a successful write restarts the count")
}

func TestAccept_PendingFlushIsNotRequestedTwice(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, WithPolicy(Policy{FlushThreshold: 2, LogLevel: LogFull}))

	accept(t, s, 1000, cand(event.Start{}))
	first := accept(t, s, 1100, cand(update(0, 0, "A")))
	require.NotNil(t, first.Flush)

	// Counted from the pending write, whatever its outcome so far.
	out := accept(t, s, 1200, cand(update(1, 0, "B")))
	assert.Nil(t, out.Flush)
	require.NoError(t, (<-first.Flush).Err)
}

func TestAccept_StopForcesFlush(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	accept(t, s, 1000, cand(event.Start{}))
	out := accept(t, s, 2000, cand(event.Stop{}))
	assert.True(t, out.HasStop)
	require.NotNil(t, out.Flush)
	require.NoError(t, (<-out.Flush).Err)

	rec := f.stored(t, s)
	assert.Equal(t, record.Stopped, rec.Status())
	assert.Equal(t, "Mini", rec.Title)
}

func TestAccept_SuccessfulSubmitDisengages(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	accept(t, s, 1000, cand(event.Start{}))
	out := accept(t, s, 2000, cand(update(0, 0, "A")), cand(event.Submit{Success: true}))
	assert.True(t, out.HasSuccessfulSubmit)
	require.NotNil(t, out.Flush)
	require.NoError(t, (<-out.Flush).Err)

	assert.Equal(t, record.Solved, s.Status())
	assert.True(t, s.Disengaged())

	events := s.Snapshot().Events
	assert.Equal(t, event.KindSubmit, events[len(events)-1].Kind(), "submit sorts after the same-instant update")

	out = accept(t, s, 3000, cand(event.Start{}), cand(update(1, 1, "Z")))
	assert.True(t, out.Rejected)
	assert.Equal(t, RejectSolved, out.Reason)
	assert.Len(t, s.Snapshot().Events, 3)
}

func TestAccept_FailedSubmitKeepsRecording(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	accept(t, s, 1000, cand(event.Start{}))
	out := accept(t, s, 2000, cand(event.Submit{Success: false}))
	assert.Nil(t, out.Flush)
	assert.False(t, s.Disengaged())
	assert.Equal(t, record.Recording, s.Status())
}

func TestAccept_ResumeAfterSolve(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, WithPolicy(Policy{FlushThreshold: 30, ResumeAfterSolve: true, LogLevel: LogFull}))

	accept(t, s, 1000, cand(event.Start{}))
	accept(t, s, 2000, cand(event.Submit{Success: true}))
	assert.False(t, s.Disengaged())

	out := accept(t, s, 3000, cand(update(0, 0, "Q")))
	assert.True(t, out.Rejected)
	assert.Equal(t, RejectSolved, out.Reason)

	out = accept(t, s, 4000, cand(event.Start{}), cand(update(0, 0, "Q")))
	assert.False(t, out.Rejected)
	assert.Equal(t, record.Recording, s.Status())
}

func TestOpen_ExtendsStoredRecord(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	accept(t, s, 1000, cand(event.Start{}))
	require.NoError(t, s.Close(context.Background()))

	obs := testObservation()
	obs.Title = "Mini (renamed)"
	s2, err := Open(context.Background(), f.storage, f.flusher, obs, WithClock(f.clock))
	require.NoError(t, err)
	assert.Equal(t, s.Identity(), s2.Identity())
	assert.Equal(t, record.Stopped, s2.Status())

	snap := s2.Snapshot()
	assert.Equal(t, "Mini (renamed)", snap.Title)
	assert.Len(t, snap.Events, 2)

	out := accept(t, s2, 9000, cand(event.Start{}), cand(update(1, 1, "X")))
	assert.False(t, out.Rejected)
	assert.Len(t, s2.Snapshot().Events, 4)
}

func TestOpen_SolvedRecordIsDisengaged(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	accept(t, s, 1000, cand(event.Start{}))
	out := accept(t, s, 2000, cand(event.Submit{Success: true}))
	require.NoError(t, (<-out.Flush).Err)

	s2 := f.open(t)
	assert.True(t, s2.Disengaged())
	assert.Equal(t, record.Solved, s2.Status())

	s3 := f.open(t, WithPolicy(Policy{ResumeAfterSolve: true, LogLevel: LogFull}))
	assert.False(t, s3.Disengaged())
}

func TestOpen_StorageFailure(t *testing.T) {
	_, err := Open(context.Background(), failingStorage{}, persist.NewFlusher(persist.NewMemory()), testObservation())
	require.Error(t, err)
	assert.True(t, persist.IsStorageError(err))
}

func TestClose_SynthesizesStop(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	accept(t, s, 1000, cand(event.Start{}), cand(update(0, 0, "A")))

	f.clock.Set(7000)
	require.NoError(t, s.Close(context.Background()))

	rec := f.stored(t, s)
	require.Len(t, rec.Events, 3)
	last := rec.Events[2]
	assert.Equal(t, event.KindStop, last.Kind())
	assert.Equal(t, int64(7000), last.Timestamp)
	assert.Equal(t, record.Stopped, rec.Status())

	_, err := s.Accept(context.Background(), []event.Candidate{cand(event.Start{})}, 8000)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Close(context.Background()), "second close is a no-op")
}

func TestClose_StopNeverPrecedesLastEvent(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	accept(t, s, 5000, cand(event.Start{}), cand(update(0, 0, "A")))

	f.clock.Set(10)
	require.NoError(t, s.Close(context.Background()))

	rec := f.stored(t, s)
	assert.Equal(t, record.Stopped, rec.Status())
	assert.Equal(t, int64(5000), rec.Events[len(rec.Events)-1].Timestamp)
}

func TestClose_StoppedSessionAddsNothing(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	accept(t, s, 1000, cand(event.Start{}))
	out := accept(t, s, 2000, cand(event.Stop{}))
	require.NoError(t, (<-out.Flush).Err)
	puts := f.storage.Puts()

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, puts, f.storage.Puts(), "nothing unsaved, nothing written")
	assert.Len(t, f.stored(t, s).Events, 2)
}

func TestClose_UnstartedSessionWritesNothing(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	require.NoError(t, s.Close(context.Background()))

	_, err := f.storage.Get(context.Background(), s.Identity())
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

func TestClose_ReportsStorageError(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	accept(t, s, 1000, cand(event.Start{}))

	f.storage.FailPuts(errors.New("quota exceeded"))
	err := s.Close(context.Background())
	require.Error(t, err)
	assert.True(t, persist.IsStorageError(err))
}

func TestFlush_Explicit(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	accept(t, s, 1000, cand(event.Start{}), cand(update(0, 0, "A")))

	require.NoError(t, s.Flush(context.Background()))
	assert.Len(t, f.stored(t, s).Events, 2)

	f.storage.FailPuts(errors.New("offline"))
	err := s.Flush(context.Background())
	require.Error(t, err)
	assert.True(t, persist.IsStorageError(err), "a failed flush must be reported")
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	accept(t, s, 1000, cand(event.Start{}))
	out := accept(t, s, 2000, cand(event.Submit{Success: true}))
	require.NoError(t, (<-out.Flush).Err)
	require.True(t, s.Disengaged())

	require.NoError(t, s.Reset(context.Background()))

	_, err := f.storage.Get(context.Background(), s.Identity())
	assert.ErrorIs(t, err, persist.ErrNotFound)
	assert.Equal(t, record.Unstarted, s.Status())
	assert.False(t, s.Disengaged())

	out = accept(t, s, 3000, cand(event.Start{}))
	assert.False(t, out.Rejected)
	require.NoError(t, s.Close(context.Background()))
	assert.Len(t, f.stored(t, s).Events, 2)
}

func TestReset_NothingStored(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	assert.NoError(t, s.Reset(context.Background()))
}

func TestObserve_RefreshesMetadata(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	obs := testObservation()
	obs.Byline = "By Someone"
	obs.SolverName = "sam"
	require.NoError(t, s.Observe(obs))
	assert.Equal(t, "By Someone", s.Snapshot().Byline)
	assert.Equal(t, "sam", s.Snapshot().SolverName)

	other := testObservation()
	other.Clues["Down"][0].Text = "Different"
	assert.Error(t, s.Observe(other))
}

func TestConcurrentAccept(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, WithPolicy(Policy{FlushThreshold: 5, LogLevel: LogFull}))
	accept(t, s, 0, candAt(0, event.Start{}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Accept(context.Background(), []event.Candidate{candAt(int64(10+i), update(0, 0, "A"))}, 0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	events := s.Snapshot().Events
	assert.Len(t, events, 21)
	assert.True(t, event.Sorted(events))
	assert.Equal(t, 21, f.obs.accepted)
}

func ptr[T any](v T) *T { return &v }

func kinds(events []event.Event) []event.Kind {
	out := make([]event.Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind()
	}
	return out
}

type countingObserver struct {
	mu       sync.Mutex
	accepted int
	rejected map[RejectReason]int
	dropped  int
	depth    int
}

func (o *countingObserver) EventsAccepted(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accepted += n
}

func (o *countingObserver) BatchRejected(r RejectReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rejected == nil {
		o.rejected = make(map[RejectReason]int)
	}
	o.rejected[r]++
}

func (o *countingObserver) CandidateDropped(*event.ValidationError) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped++
}

func (o *countingObserver) QueueDepth(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.depth = n
}

type failingStorage struct{}

func (failingStorage) Get(context.Context, string) (*record.Record, error) {
	return nil, errors.New("database is locked")
}
func (failingStorage) Put(context.Context, string, *record.Record) error { return nil }
func (failingStorage) Delete(context.Context, string) error              { return nil }
func (failingStorage) List(context.Context) ([]string, error)            { return nil, nil }
