package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/puzzle"
	"github.com/roach88/solvelog/internal/record"
	"github.com/roach88/solvelog/internal/recorder"
)

// Scenario defines one recording scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Policy overrides the recorder defaults.
	Policy *PolicySpec `yaml:"policy,omitempty"`

	Puzzle PuzzleSpec `yaml:"puzzle"`

	Steps []Step `yaml:"steps"`

	// Assertions validate the outcomes and the final record.
	Assertions []Assertion `yaml:"assertions"`

	// RecordingID is an optional fixed recording ID.
	RecordingID string `yaml:"recording_id,omitempty"`
}

// PolicySpec mirrors recorder.Policy with YAML names.
type PolicySpec struct {
	FlushThreshold   *int   `yaml:"flush_threshold,omitempty"`
	ResumeAfterSolve bool   `yaml:"resume_after_solve,omitempty"`
	EventLogLevel    string `yaml:"event_log_level,omitempty"`
}

// PuzzleSpec describes the observed page.
type PuzzleSpec struct {
	URL    string `yaml:"url,omitempty"`
	Title  string `yaml:"title,omitempty"`
	Date   string `yaml:"date,omitempty"`
	Byline string `yaml:"byline,omitempty"`

	// Rows draws the board top to bottom: "." is an empty square, "#" a
	// block, anything else a pre-filled square.
	Rows []string `yaml:"rows"`

	// Labels places clue labels on squares as [x, y].
	Labels map[string][]int `yaml:"labels,omitempty"`

	Clues map[string][]ClueSpec `yaml:"clues,omitempty"`
}

// ClueSpec is one clue.
type ClueSpec struct {
	Label string `yaml:"label"`
	Text  string `yaml:"text"`
}

// Step is one scenario action. Exactly one of Batch, Flush, Close, Reopen or
// Reset is set; At stamps the fake clock before the step runs.
type Step struct {
	At     int64             `yaml:"at,omitempty"`
	Batch  []event.Candidate `yaml:"batch,omitempty"`
	Flush  bool              `yaml:"flush,omitempty"`
	Close  bool              `yaml:"close,omitempty"`
	Reopen bool              `yaml:"reopen,omitempty"`
	Reset  bool              `yaml:"reset,omitempty"`
}

func (s Step) kind() string {
	switch {
	case s.Flush:
		return "flush"
	case s.Close:
		return "close"
	case s.Reopen:
		return "reopen"
	case s.Reset:
		return "reset"
	default:
		return "batch"
	}
}

// Assertion validates an outcome or the final state.
type Assertion struct {
	// Type specifies the assertion type, one of the Assert* constants.
	Type string `yaml:"type"`

	// Step is the 0-based step index (used by rejected, accepted, dropped).
	Step int `yaml:"step,omitempty"`

	// Reason is the expected rejection reason (used by rejected).
	Reason string `yaml:"reason,omitempty"`

	// Status is the expected final status (used by status).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number (used by accepted, dropped, event_count,
	// writes).
	Count int `yaml:"count,omitempty"`

	// Kinds is the expected event kind sequence (used by kinds).
	Kinds []string `yaml:"kinds,omitempty"`

	// At is a replay instant (used by solved_at, fill_at).
	At int64 `yaml:"at,omitempty"`

	// Cell and Text are used by fill_at; an empty Text means no fill.
	Cell []int `yaml:"cell,omitempty"`
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertStatus     = "status"
	AssertRejected   = "rejected"
	AssertAccepted   = "accepted"
	AssertDropped    = "dropped"
	AssertEventCount = "event_count"
	AssertKinds      = "kinds"
	AssertWrites     = "writes"
	AssertSolvedAt   = "solved_at"
	AssertUnsolved   = "unsolved"
	AssertFillAt     = "fill_at"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// Observation builds the page observation for the scenario puzzle.
func (p PuzzleSpec) Observation() record.Observation {
	var board puzzle.Board
	for y, row := range p.Rows {
		for x, r := range []rune(row) {
			switch r {
			case '#':
				board = append(board, puzzle.Block(x, y))
			case '.':
				board = append(board, puzzle.Open(x, y, ""))
			default:
				board = append(board, puzzle.Open(x, y, string(r)))
			}
		}
	}
	for label, at := range p.Labels {
		for i := range board {
			if board[i].X == at[0] && board[i].Y == at[1] {
				board[i].Label = label
			}
		}
	}

	clues := puzzle.ClueIndex{}
	for section, list := range p.Clues {
		for _, c := range list {
			clues[section] = append(clues[section], puzzle.Clue{Label: c.Label, Text: c.Text})
		}
	}

	return record.Observation{
		URL:    p.URL,
		Title:  p.Title,
		Date:   p.Date,
		Byline: p.Byline,
		Board:  board,
		Clues:  clues,
	}
}

// RecorderPolicy returns the recorder policy for the scenario.
func (s *Scenario) RecorderPolicy() (recorder.Policy, error) {
	p := recorder.DefaultPolicy()
	if s.Policy == nil {
		return p, nil
	}
	if s.Policy.FlushThreshold != nil {
		p.FlushThreshold = *s.Policy.FlushThreshold
	}
	p.ResumeAfterSolve = s.Policy.ResumeAfterSolve
	level, err := recorder.ParseLogLevel(s.Policy.EventLogLevel)
	if err != nil {
		return recorder.Policy{}, err
	}
	p.LogLevel = level
	return p, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Puzzle.Rows) == 0 {
		return fmt.Errorf("puzzle.rows is required and must be non-empty")
	}

	for label, at := range s.Puzzle.Labels {
		if len(at) != 2 {
			return fmt.Errorf("puzzle.labels[%s]: want [x, y]", label)
		}
	}

	if _, err := s.RecorderPolicy(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		set := 0
		for _, b := range []bool{len(step.Batch) > 0, step.Flush, step.Close, step.Reopen, step.Reset} {
			if b {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of batch, flush, close, reopen or reset is required", i)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRejected, AssertAccepted, AssertDropped:
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range for %s", index, a.Step, a.Type)
		}
		if a.Type == AssertRejected && a.Reason == "" {
			return fmt.Errorf("assertions[%d]: reason is required for rejected", index)
		}
	case AssertStatus:
		if _, err := record.ParseStatus(a.Status); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertEventCount, AssertWrites:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertKinds:
		for _, k := range a.Kinds {
			if !event.Kind(k).Valid() {
				return fmt.Errorf("assertions[%d]: unknown kind %q", index, k)
			}
		}
	case AssertSolvedAt, AssertUnsolved:
	case AssertFillAt:
		if len(a.Cell) != 2 {
			return fmt.Errorf("assertions[%d]: cell [x, y] is required for fill_at", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func kindsOf(events []event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e.Kind())
	}
	return out
}

func joinKinds(kinds []string) string {
	return "[" + strings.Join(kinds, " ") + "]"
}
