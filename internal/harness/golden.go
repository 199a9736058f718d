package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/recorder"
	"github.com/roach88/solvelog/internal/replay"
)

// Snapshot renders a scenario result as deterministic text: step outcomes,
// the stored log and the replay summary.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "scenario: %s\n", scenario.Name)
	status := "unstarted"
	if result.Record != nil {
		status = result.Record.Status().String()
	}
	fmt.Fprintf(&buf, "status: %s\n", status)
	fmt.Fprintf(&buf, "writes: %d\n", result.Writes)

	buf.WriteString("steps:\n")
	for i, step := range scenario.Steps {
		fmt.Fprintf(&buf, "  [%d] %s\n", i, describeStep(step, outcome(result, i)))
	}

	buf.WriteString("events:\n")
	for _, e := range events(result) {
		fmt.Fprintf(&buf, "  %d %s\n", e.Timestamp, describeEvent(e))
	}

	buf.WriteString("replay:\n")
	if result.Timeline == nil {
		buf.WriteString("none\n")
		return buf.Bytes(), nil
	}
	if err := replay.WriteSummary(&buf, result.Timeline); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func describeStep(step Step, out recorder.Outcome) string {
	if step.kind() != "batch" {
		return step.kind()
	}
	if out.Rejected {
		return "rejected " + string(out.Reason)
	}
	s := fmt.Sprintf("accepted %d", out.Accepted)
	if n := len(out.Dropped); n > 0 {
		s += fmt.Sprintf(", dropped %d", n)
	}
	if out.Filtered > 0 {
		s += fmt.Sprintf(", filtered %d", out.Filtered)
	}
	return s
}

func describeEvent(e event.Event) string {
	switch p := e.Payload.(type) {
	case event.Update:
		return fmt.Sprintf("update %d,%d %q", p.X, p.Y, p.Fill)
	case event.SelectClue:
		return fmt.Sprintf("selectClue %s %s", p.Section, p.Label)
	case event.Submit:
		if p.Success {
			return "submit success"
		}
		return "submit failure"
	}
	if c, ok := e.Cell(); ok {
		return fmt.Sprintf("%s %d,%d", e.Kind(), c.X, c.Y)
	}
	return string(e.Kind())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot, err := Snapshot(scenario, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot)

	return result, nil
}
