package record

import (
	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/puzzle"
)

// Observation is what a sensing adapter sees when it loads a puzzle page.
type Observation struct {
	URL           string           `json:"url"`
	Title         string           `json:"title"`
	Date          string           `json:"date"`
	Byline        string           `json:"byline"`
	SolverName    string           `json:"solverName,omitempty"`
	UserAgentInfo string           `json:"userAgentInfo,omitempty"`
	Board         puzzle.Board     `json:"boardSnapshot"`
	Clues         puzzle.ClueIndex `json:"clueIndex"`
}

// Identity computes the puzzle identity of the observed board and clues.
func (o Observation) Identity() (string, error) {
	return puzzle.Identity(o.Board, o.Clues)
}

// Fresh builds an empty record from an observation.
func Fresh(obs Observation) *Record {
	r := &Record{
		Board:  obs.Board.Clone(),
		Clues:  obs.Clues.Clone(),
		Events: []event.Event{},
	}
	applyMetadata(r, obs)
	return r
}

// Observe merges a new observation into an existing record. Metadata are
// taken from the observation; the board snapshot, clue index and events of the
// existing record are kept. A nil existing record yields Fresh(obs).
func Observe(existing *Record, obs Observation) *Record {
	if existing == nil {
		return Fresh(obs)
	}
	r := existing.Clone()
	if r.Board == nil {
		r.Board = obs.Board.Clone()
	}
	if r.Clues == nil {
		r.Clues = obs.Clues.Clone()
	}
	applyMetadata(r, obs)
	return r
}

func applyMetadata(r *Record, obs Observation) {
	r.Version = Version
	r.URL = obs.URL
	r.Title = obs.Title
	r.Date = obs.Date
	r.Byline = obs.Byline
	// Absent values clear what an earlier visit stored.
	r.SolverName = obs.SolverName
	r.UserAgentInfo = obs.UserAgentInfo
}
