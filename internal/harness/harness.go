package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/solvelog/internal/persist"
	"github.com/roach88/solvelog/internal/record"
	"github.com/roach88/solvelog/internal/recorder"
	"github.com/roach88/solvelog/internal/replay"
	"github.com/roach88/solvelog/internal/testutil"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string

	// Outcomes holds one entry per step; non-batch steps leave a zero value.
	Outcomes []recorder.Outcome

	// Record is the stored record after the last step, or nil when none is
	// stored.
	Record *record.Record

	// Timeline replays Record.
	Timeline *replay.Timeline

	// Writes counts successful storage writes.
	Writes int
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// harness holds the per-run state.
type harness struct {
	scenario *Scenario
	storage  *persist.Memory
	flusher  *persist.Flusher
	clock    *testutil.FakeClock
	ids      *testutil.FixedIDGenerator
	policy   recorder.Policy
	session  *recorder.Session
}

// Run executes a scenario and returns the result.
//
// Each scenario runs over fresh in-memory storage with a fake clock, so the
// result depends only on the scenario.
func Run(scenario *Scenario) (*Result, error) {
	policy, err := scenario.RecorderPolicy()
	if err != nil {
		return nil, err
	}

	storage := persist.NewMemory()
	h := &harness{
		scenario: scenario,
		storage:  storage,
		flusher:  persist.NewFlusher(storage),
		clock:    testutil.NewFakeClock(0),
		ids:      testutil.NewFixedIDGenerator(scenario.RecordingID),
		policy:   policy,
	}
	defer h.flusher.Close()

	ctx := context.Background()
	if err := h.open(ctx); err != nil {
		return nil, err
	}

	result := &Result{Pass: true, Errors: []string{}}
	for i, step := range scenario.Steps {
		if step.At != 0 {
			h.clock.Set(step.At)
		}
		out, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.kind(), err)
		}
		result.Outcomes = append(result.Outcomes, out)
	}

	// Pending count-based writes are awaited per step; only the final
	// record is read here.
	rec, err := storage.Get(ctx, h.session.Identity())
	switch {
	case err == nil:
		result.Record = rec
		result.Timeline = replay.Build(rec, replay.Options{})
	case !errors.Is(err, persist.ErrNotFound):
		return nil, fmt.Errorf("read final record: %w", err)
	}
	result.Writes = storage.Puts()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *harness) open(ctx context.Context) error {
	s, err := recorder.Open(ctx, h.storage, h.flusher, h.scenario.Puzzle.Observation(),
		recorder.WithPolicy(h.policy),
		recorder.WithClock(h.clock),
		recorder.WithIDGenerator(h.ids),
	)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	h.session = s
	return nil
}

func (h *harness) execute(ctx context.Context, step Step) (recorder.Outcome, error) {
	switch {
	case step.Flush:
		return recorder.Outcome{}, h.session.Flush(ctx)
	case step.Close:
		return recorder.Outcome{}, h.session.Close(ctx)
	case step.Reopen:
		if err := h.session.Close(ctx); err != nil {
			return recorder.Outcome{}, err
		}
		return recorder.Outcome{}, h.open(ctx)
	case step.Reset:
		return recorder.Outcome{}, h.session.Reset(ctx)
	}

	out, err := h.session.Accept(ctx, step.Batch, h.clock.Now())
	if err != nil {
		return recorder.Outcome{}, err
	}
	if out.Flush != nil {
		if res := <-out.Flush; res.Err != nil {
			return out, fmt.Errorf("flush: %w", res.Err)
		}
	}
	return out, nil
}
