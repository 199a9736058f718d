package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/record"
	"github.com/roach88/solvelog/internal/recorder"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertStatus:
		return assertStatus(result, a)
	case AssertRejected:
		return assertRejected(result, a)
	case AssertAccepted:
		return compareCount(a.Type, a.Count, outcome(result, a.Step).Accepted)
	case AssertDropped:
		return compareCount(a.Type, a.Count, len(outcome(result, a.Step).Dropped))
	case AssertEventCount:
		return compareCount(a.Type, a.Count, len(events(result)))
	case AssertWrites:
		return compareCount(a.Type, a.Count, result.Writes)
	case AssertKinds:
		return assertKinds(result, a)
	case AssertSolvedAt:
		return assertSolvedAt(result, a)
	case AssertUnsolved:
		if result.Timeline != nil && result.Timeline.Solved != nil {
			return &AssertionError{Type: a.Type, Expected: "not solved", Actual: fmt.Sprintf("solved at %d", *result.Timeline.Solved)}
		}
		return nil
	case AssertFillAt:
		return assertFillAt(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func outcome(result *Result, step int) recorder.Outcome {
	if step < 0 || step >= len(result.Outcomes) {
		return recorder.Outcome{}
	}
	return result.Outcomes[step]
}

func events(result *Result) []event.Event {
	if result.Record == nil {
		return nil
	}
	return result.Record.Events
}

func compareCount(typ string, want, got int) error {
	if want != got {
		return &AssertionError{Type: typ, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
	}
	return nil
}

func assertStatus(result *Result, a Assertion) error {
	got := record.Unstarted
	if result.Record != nil {
		got = result.Record.Status()
	}
	if got.String() != a.Status {
		return &AssertionError{Type: a.Type, Expected: a.Status, Actual: got.String()}
	}
	return nil
}

func assertRejected(result *Result, a Assertion) error {
	if a.Step >= len(result.Outcomes) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("step %d", a.Step), Actual: "no such step"}
	}
	o := result.Outcomes[a.Step]
	if !o.Rejected {
		return &AssertionError{Type: a.Type, Expected: "rejected: " + a.Reason, Actual: fmt.Sprintf("accepted %d", o.Accepted)}
	}
	if string(o.Reason) != a.Reason {
		return &AssertionError{Type: a.Type, Expected: a.Reason, Actual: string(o.Reason)}
	}
	return nil
}

func assertKinds(result *Result, a Assertion) error {
	got := kindsOf(events(result))
	if !slices.Equal(got, a.Kinds) {
		return &AssertionError{Type: a.Type, Expected: joinKinds(a.Kinds), Actual: joinKinds(got)}
	}
	return nil
}

func assertSolvedAt(result *Result, a Assertion) error {
	if result.Timeline == nil || result.Timeline.Solved == nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("solved at %d", a.At), Actual: "not solved"}
	}
	if got := *result.Timeline.Solved; got != a.At {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("solved at %d", a.At), Actual: fmt.Sprintf("solved at %d", got)}
	}
	return nil
}

func assertFillAt(result *Result, a Assertion) error {
	var got string
	if result.Timeline != nil {
		got = result.Timeline.FillsAt(a.At)[event.Cell{X: a.Cell[0], Y: a.Cell[1]}]
	}
	if got != a.Text {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("(%d,%d) = %q at %d", a.Cell[0], a.Cell[1], a.Text, a.At),
			Actual:   fmt.Sprintf("%q", got),
		}
	}
	return nil
}
