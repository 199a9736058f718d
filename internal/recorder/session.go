package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/persist"
	"github.com/roach88/solvelog/internal/record"
)

// ErrClosed is returned by operations on a session after Close.
var ErrClosed = errors.New("session closed")

// RejectReason says why a whole batch was refused.
type RejectReason string

const (
	// RejectStopped means the log ends in a stop and the batch has no start.
	RejectStopped RejectReason = "stopped"
	// RejectUnstarted means the log is empty and the batch has no start.
	RejectUnstarted RejectReason = "unstarted"
	// RejectSolved means the session is solved.
	RejectSolved RejectReason = "solved"
)

// Outcome is the result of offering one batch to a session.
type Outcome struct {
	persist.Batch

	// Rejected is set when the whole batch was refused. Rejection is an
	// expected outcome, not an error.
	Rejected bool
	Reason   RejectReason

	// Dropped lists candidates that failed validation.
	Dropped []*event.ValidationError

	// Filtered counts candidates skipped by the event log level.
	Filtered int

	// Flush receives the write result when the batch triggered a flush, and
	// is nil otherwise.
	Flush <-chan persist.Result
}

// Option configures a Session.
type Option func(*Session)

// WithPolicy sets the acceptance and flush policy.
func WithPolicy(p Policy) Option {
	return func(s *Session) {
		s.policy = p
	}
}

// WithClock sets the clock used to stamp batches without an observation time
// and synthesised stops.
func WithClock(c Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithIDGenerator sets the recording ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Session) {
		s.ids = g
	}
}

// WithObserver registers an instrumentation observer.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

// Session is the recording state machine for one puzzle.
//
// Session methods are safe to call from multiple goroutines, but batches are
// always applied one at a time.
type Session struct {
	storage persist.Storage
	flusher *persist.Flusher

	policy   Policy
	clock    Clock
	ids      IDGenerator
	observer Observer

	identity    string
	recordingID string

	mu         sync.Mutex
	obs        record.Observation
	rec        *record.Record
	disengaged bool
	closed     bool

	// Event counters for the flush policy. logged counts every event this
	// session inserted; saved is the highest count covered by a successful
	// write; requested is the count covered by the latest submitted write.
	logged    int
	saved     int
	requested int
}

// unsaved is the number of logged events no successful write covers yet.
func (s *Session) unsaved() int {
	return s.logged - s.saved
}

// sinceRequest is the number of logged events no pending or successful write
// covers. It drives count-based flushing.
func (s *Session) sinceRequest() int {
	return s.logged - max(s.saved, s.requested)
}

// track forwards a write result after updating the counters. A failed write
// leaves its events counted, so the next batch writes a newer snapshot.
func (s *Session) track(ch <-chan persist.Result, covered int) <-chan persist.Result {
	out := make(chan persist.Result, 1)
	go func() {
		res := <-ch
		s.settle(res, covered)
		out <- res
	}()
	return out
}

func (s *Session) settle(res persist.Result, covered int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.OK() {
		s.saved = max(s.saved, covered)
		return
	}
	if s.requested == covered {
		s.requested = s.saved
	}
}

// Open starts a session for the observed puzzle. A record already stored
// under the puzzle's identity is extended; its metadata are refreshed from
// obs. A stored record that is already solved leaves the session disengaged
// unless the policy resumes after solve.
func Open(ctx context.Context, storage persist.Storage, flusher *persist.Flusher, obs record.Observation, opts ...Option) (*Session, error) {
	s := &Session{
		storage:  storage,
		flusher:  flusher,
		policy:   DefaultPolicy(),
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		observer: noopObserver{},
		obs:      obs,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := obs.Board.Validate(); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	identity, err := obs.Identity()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	s.identity = identity
	s.recordingID = s.ids.Generate()

	existing, err := storage.Get(ctx, identity)
	switch {
	case errors.Is(err, persist.ErrNotFound):
		existing = nil
	case err != nil:
		return nil, &persist.StorageError{Op: "get", Identity: identity, Err: err}
	}
	s.rec = record.Observe(existing, obs)

	status := s.rec.Status()
	if status == record.Solved && !s.policy.ResumeAfterSolve {
		s.disengaged = true
	}

	slog.Info("session opened",
		"identity", identity,
		"recording_id", s.recordingID,
		"status", status.String(),
		"events", len(s.rec.Events),
		"disengaged", s.disengaged,
	)
	return s, nil
}

// Identity returns the puzzle identity keying this session's record.
func (s *Session) Identity() string {
	return s.identity
}

// RecordingID identifies this recording session in logs and storage.
func (s *Session) RecordingID() string {
	return s.recordingID
}

// Status derives the current recording status from the log.
func (s *Session) Status() record.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Status()
}

// Disengaged reports whether the session has stopped accepting batches
// because the puzzle is solved.
func (s *Session) Disengaged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disengaged
}

// Snapshot returns a copy of the current record.
func (s *Session) Snapshot() *record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Clone()
}

// Accept offers one batch of candidates observed at observedAt.
func (s *Session) Accept(ctx context.Context, candidates []event.Candidate, observedAt int64) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Outcome{}, ErrClosed
	}
	if s.disengaged {
		return s.reject(RejectSolved, Outcome{}), nil
	}

	var out Outcome
	events := make([]event.Event, 0, len(candidates))
	hasStart := false
	for _, c := range candidates {
		if !s.policy.LogLevel.Records(c.Kind) {
			out.Filtered++
			continue
		}
		e, err := c.Event(observedAt)
		if err != nil {
			var ve *event.ValidationError
			if !errors.As(err, &ve) {
				return Outcome{}, err
			}
			slog.Warn("candidate dropped", "identity", s.identity, "error", ve)
			s.observer.CandidateDropped(ve)
			out.Dropped = append(out.Dropped, ve)
			continue
		}
		hasStart = hasStart || e.Kind() == event.KindStart
		events = append(events, e)
	}
	if len(events) == 0 {
		return out, nil
	}

	if !hasStart {
		switch s.rec.Status() {
		case record.Unstarted:
			return s.reject(RejectUnstarted, out), nil
		case record.Stopped:
			return s.reject(RejectStopped, out), nil
		case record.Solved:
			return s.reject(RejectSolved, out), nil
		}
	}

	for _, e := range events {
		s.rec.Events = event.InsertStable(s.rec.Events, e)
		switch {
		case e.Kind() == event.KindStop:
			out.HasStop = true
		case e.IsSuccessfulSubmit():
			out.HasSuccessfulSubmit = true
		}
	}
	out.Accepted = len(events)
	s.logged += out.Accepted
	s.observer.EventsAccepted(out.Accepted)

	if since := s.sinceRequest(); persist.ShouldFlush(out.Batch, since, s.policy.FlushThreshold) {
		slog.Info("saving record",
			"identity", s.identity,
			"stoppage", out.HasStop,
			"successful_submit", out.HasSuccessfulSubmit,
			"enough_events", s.policy.FlushThreshold > 0 && since >= s.policy.FlushThreshold,
		)
		s.requested = s.logged
		out.Flush = s.track(s.flusher.Submit(s.identity, s.rec.Clone()), s.logged)
	}

	if out.HasSuccessfulSubmit && !s.policy.ResumeAfterSolve {
		s.disengaged = true
		slog.Info("session disengaged after solve", "identity", s.identity, "events", len(s.rec.Events))
	}
	return out, nil
}

func (s *Session) reject(reason RejectReason, out Outcome) Outcome {
	out.Rejected = true
	out.Reason = reason
	slog.Debug("batch rejected", "identity", s.identity, "reason", string(reason))
	s.observer.BatchRejected(reason)
	return out
}

// Flush writes the current record and waits for the storage outcome.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	snapshot := s.rec.Clone()
	covered := s.logged
	s.mu.Unlock()

	if err := s.flusher.Flush(ctx, s.identity, snapshot); err != nil {
		return err
	}

	s.mu.Lock()
	s.saved = max(s.saved, covered)
	s.mu.Unlock()
	return nil
}

// Close tears the session down. A session still recording gets a final stop,
// stamped no earlier than the last logged event; the record is then written
// if anything is unsaved and Close waits for the write.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	stopped := false
	if !s.disengaged && s.rec.Status() == record.Recording {
		ts := s.clock.Now()
		if last, ok := s.rec.LastEventAt(); ok && last > ts {
			ts = last
		}
		s.rec.Events = event.InsertStable(s.rec.Events, event.At(ts, event.Stop{}))
		s.logged++
		s.observer.EventsAccepted(1)
		stopped = true
	}
	dirty := s.unsaved() > 0
	snapshot := s.rec.Clone()
	s.mu.Unlock()

	if !dirty {
		slog.Debug("session closed", "identity", s.identity)
		return nil
	}
	slog.Info("saving record on teardown", "identity", s.identity, "synthesized_stop", stopped)
	return s.flusher.Flush(ctx, s.identity, snapshot)
}

// Reset deletes the stored record, starts over from the latest observation
// with an empty log and re-arms recording.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.flusher.Delete(ctx, s.identity); err != nil && !errors.Is(err, persist.ErrNotFound) {
		return err
	}
	s.rec = record.Fresh(s.obs)
	s.saved = s.logged
	s.requested = s.logged
	s.disengaged = false
	slog.Info("record cleared", "identity", s.identity)
	return nil
}

// Observe refreshes page metadata from a newer observation of the same
// puzzle. The board snapshot, clue index and events are kept.
func (s *Session) Observe(obs record.Observation) error {
	identity, err := obs.Identity()
	if err != nil {
		return err
	}
	if identity != s.identity {
		return fmt.Errorf("observe: identity %s does not match session %s", identity, s.identity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs = obs
	s.rec = record.Observe(s.rec, obs)
	return nil
}
