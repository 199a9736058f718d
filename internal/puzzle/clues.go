package puzzle

import (
	"slices"

	"github.com/roach88/solvelog/internal/event"
)

// Clue is one numbered clue.
type Clue struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// ClueIndex maps section names to the clues captured in that section, in
// page order.
type ClueIndex map[string][]Clue

// Sections returns section names in canonical (UTF-16 code unit) order.
func (ci ClueIndex) Sections() []string {
	names := make([]string, 0, len(ci))
	for name := range ci {
		names = append(names, name)
	}
	slices.SortFunc(names, compareUTF16)
	return names
}

// Find returns the clue with label in section.
func (ci ClueIndex) Find(section, label string) (Clue, bool) {
	for _, c := range ci[section] {
		if c.Label == label {
			return c, true
		}
	}
	return Clue{}, false
}

// Clone returns a deep copy of the index.
func (ci ClueIndex) Clone() ClueIndex {
	if ci == nil {
		return nil
	}
	out := make(ClueIndex, len(ci))
	for name, clues := range ci {
		out[name] = slices.Clone(clues)
	}
	return out
}

// Layout names the clue sections that run across and down.
type Layout struct {
	Across string
	Down   string
}

// DefaultLayout returns the section names used by the supported puzzle pages.
func DefaultLayout() Layout {
	return Layout{Across: "Across", Down: "Down"}
}

// Direction maps a section name to its answer direction.
func (l Layout) Direction(section string) (Direction, bool) {
	switch section {
	case l.Across:
		return Across, true
	case l.Down:
		return Down, true
	default:
		return 0, false
	}
}

// ClueCells returns the member cells of the clue (section, label): the run of
// fillable cells that starts at the square labelled label. Unknown sections
// and labels produce no cells.
func (l Layout) ClueCells(g *Grid, section, label string) []event.Cell {
	d, ok := l.Direction(section)
	if !ok {
		return nil
	}
	start, ok := g.LabelCell(label)
	if !ok {
		return nil
	}
	return g.Run(start, d)
}
