package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/puzzle"
)

// Version is written to every record on observation.
const Version = "0.1"

// Record is a session record.
type Record struct {
	Version       string           `json:"version"`
	URL           string           `json:"url"`
	Title         string           `json:"title"`
	Date          string           `json:"date"`
	Byline        string           `json:"byline"`
	SolverName    string           `json:"solverName,omitempty"`
	UserAgentInfo string           `json:"userAgentInfo,omitempty"`
	Board         puzzle.Board     `json:"boardSnapshot"`
	Clues         puzzle.ClueIndex `json:"clueIndex"`
	Events        []event.Event    `json:"events"`
}

// UnmarshalJSON accepts current and legacy key names.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var w struct {
		plain
		InitialState puzzle.Board     `json:"initialState"`
		ClueSections puzzle.ClueIndex `json:"clueSections"`
		UserAgent    string           `json:"userAgent"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Record(w.plain)
	if r.Board == nil {
		r.Board = w.InitialState
	}
	if r.Clues == nil {
		r.Clues = w.ClueSections
	}
	if r.UserAgentInfo == "" {
		r.UserAgentInfo = w.UserAgent
	}
	if r.Events == nil {
		r.Events = []event.Event{}
	}
	return nil
}

// Identity computes the record's puzzle identity.
func (r *Record) Identity() (string, error) {
	return puzzle.Identity(r.Board, r.Clues)
}

// Status derives the recording status from the event log.
func (r *Record) Status() Status {
	return StatusOf(r.Events)
}

// LastEventAt returns the timestamp of the last event, or false when the log
// is empty.
func (r *Record) LastEventAt() (int64, bool) {
	if len(r.Events) == 0 {
		return 0, false
	}
	return r.Events[len(r.Events)-1].Timestamp, true
}

// Clone returns a deep copy of r that shares no mutable state with it.
func (r *Record) Clone() *Record {
	out := *r
	out.Board = r.Board.Clone()
	out.Clues = r.Clues.Clone()
	out.Events = slices.Clone(r.Events)
	if out.Events == nil {
		out.Events = []event.Event{}
	}
	return &out
}

// Marshal encodes r as indented JSON.
func Marshal(r *Record) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// Encode writes r to w as indented JSON followed by a newline.
func Encode(w io.Writer, r *Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}

// Decode parses a record document. Event order is taken as stored.
func Decode(data []byte) (*Record, error) {
	var r Record
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &r, nil
}
