package replay

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/solvelog/internal/event"
)

// FormatDuration renders milliseconds as m:ss, truncating partial seconds.
func FormatDuration(ms int64) string {
	s := ms / 1000
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// Stats are aggregate counts over a timeline.
type Stats struct {
	Duration   int64 `json:"duration"`
	Solved     bool  `json:"solved"`
	Fills      int   `json:"fills"`
	Selections int   `json:"selections"`
	Clues      int   `json:"clues"`
	Checks     int   `json:"checks"`
	Reveals    int   `json:"reveals"`
}

// Stats summarises tl.
func (tl *Timeline) Stats() Stats {
	s := Stats{
		Duration:   tl.Elapsed,
		Solved:     tl.Solved != nil,
		Fills:      len(tl.Fills),
		Selections: len(tl.Selection),
		Clues:      len(tl.Clues),
	}
	for _, m := range tl.Markers {
		switch m.Kind {
		case event.KindCheck:
			s.Checks++
		case event.KindReveal:
			s.Reveals++
		}
	}
	return s
}

// WriteSummary writes a short human-readable account of tl, ending with the
// final grid.
func WriteSummary(w io.Writer, tl *Timeline) error {
	st := tl.Stats()
	var b strings.Builder

	if tl.SolveTime != nil {
		fmt.Fprintf(&b, "solved in %s\n", FormatDuration(*tl.SolveTime))
	} else {
		fmt.Fprintf(&b, "not solved, %s active\n", FormatDuration(st.Duration))
	}
	fmt.Fprintf(&b, "fills: %d  selections: %d  clues: %d  checks: %d  reveals: %d\n",
		st.Fills, st.Selections, st.Clues, st.Checks, st.Reveals)

	final := tl.FillsAt(tl.Duration)
	for y := 0; y < tl.Height; y++ {
		for x := 0; x < tl.Width; x++ {
			if text, ok := final[event.Cell{X: x, Y: y}]; ok {
				// Rebus squares show their first letter.
				b.WriteRune([]rune(text)[0])
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}
