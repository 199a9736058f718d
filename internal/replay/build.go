package replay

import (
	"cmp"
	"math"
	"slices"

	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/puzzle"
	"github.com/roach88/solvelog/internal/record"
)

// Options configures Build.
type Options struct {
	// Layout maps clue sections to directions. The zero value means
	// puzzle.DefaultLayout.
	Layout puzzle.Layout

	// Speed is the playback rate. Every timeline time is active solve time
	// divided by Speed; values <= 0 mean 1.
	Speed float64
}

// builder holds the walk state. Open intervals are tracked by index into the
// timeline slices so they can be closed in place.
type builder struct {
	tl     *Timeline
	grid   *puzzle.Grid
	clues  puzzle.ClueIndex
	layout puzzle.Layout

	fills     map[event.Cell]int
	selected  *event.Cell
	selection int
	members   map[event.Cell]bool
	highlight map[event.Cell]int
	clue      int
}

// Build replays rec into a Timeline.
func Build(rec *record.Record, opts Options) *Timeline {
	layout := opts.Layout
	if layout == (puzzle.Layout{}) {
		layout = puzzle.DefaultLayout()
	}

	b := &builder{
		tl: &Timeline{
			Fills:      []FillInterval{},
			Selection:  []CellInterval{},
			Highlights: []CellInterval{},
			Clues:      []ClueInterval{},
			Markers:    []Marker{},
		},
		grid:      puzzle.NewGrid(rec.Board),
		clues:     rec.Clues,
		layout:    layout,
		fills:     make(map[event.Cell]int),
		selection: -1,
		members:   make(map[event.Cell]bool),
		highlight: make(map[event.Cell]int),
		clue:      -1,
	}
	b.tl.Width, b.tl.Height = b.grid.Size()

	// Pre-filled squares show from the start.
	for _, s := range rec.Board {
		if s.Fill != nil && *s.Fill != "" {
			b.openFill(s.Cell(), *s.Fill, 0)
		}
	}

	b.walk(rec.Events)
	b.tl.Elapsed = b.tl.Duration
	if b.tl.Solved != nil {
		b.tl.SolveTime = ptr(*b.tl.Solved)
	}
	b.tl.Clock = ticks(b.tl.Duration)

	speed := opts.Speed
	if speed <= 0 {
		speed = 1
	}
	b.tl.Speed = speed
	if speed != 1 {
		rescale(b.tl, speed)
	}
	return b.tl
}

// rescale divides every playback time in tl by speed. Elapsed, SolveTime and
// the tick labels stay in solve time.
func rescale(tl *Timeline, speed float64) {
	at := func(t int64) int64 { return int64(math.Round(float64(t) / speed)) }
	end := func(t *int64) *int64 {
		if t == nil {
			return nil
		}
		return ptr(at(*t))
	}

	for i := range tl.Fills {
		tl.Fills[i].Start, tl.Fills[i].End = at(tl.Fills[i].Start), end(tl.Fills[i].End)
	}
	for i := range tl.Selection {
		tl.Selection[i].Start, tl.Selection[i].End = at(tl.Selection[i].Start), end(tl.Selection[i].End)
	}
	for i := range tl.Highlights {
		tl.Highlights[i].Start, tl.Highlights[i].End = at(tl.Highlights[i].Start), end(tl.Highlights[i].End)
	}
	for i := range tl.Clues {
		tl.Clues[i].Start, tl.Clues[i].End = at(tl.Clues[i].Start), end(tl.Clues[i].End)
	}
	for i := range tl.Markers {
		tl.Markers[i].At = at(tl.Markers[i].At)
	}
	for i := range tl.Clock {
		tl.Clock[i].Start, tl.Clock[i].End = at(tl.Clock[i].Start), at(tl.Clock[i].End)
	}
	tl.Solved = end(tl.Solved)
	tl.Duration = at(tl.Duration)
}

func (b *builder) walk(events []event.Event) {
	var (
		stopped           = true
		started           = false
		firstStart        int64
		cumulativeStopped int64
		lastStop          int64
		active            int64
	)

	for _, e := range events {
		if stopped && e.Kind() != event.KindStart {
			continue
		}
		if !started {
			firstStart = e.Timestamp
			started = true
		}
		active = e.Timestamp - firstStart - cumulativeStopped

		switch p := e.Payload.(type) {
		case event.Start:
			if stopped {
				cumulativeStopped += active - lastStop
				active = lastStop
			}
			stopped = false
		case event.Stop:
			stopped = true
			lastStop = active
		case event.Update:
			b.closeFill(p.Cell, active)
			if p.Fill != "" {
				b.openFill(p.Cell, p.Fill, active)
			}
		case event.Select:
			b.selectCell(p.Cell, active)
		case event.SelectClue:
			b.selectClue(p.Section, p.Label, active)
		case event.Highlight:
			b.addMember(p.Cell, active)
		case event.Unhighlight:
			b.removeMember(p.Cell, active)
		case event.Check:
			b.tl.Markers = append(b.tl.Markers, Marker{Kind: event.KindCheck, Cell: p.Cell, At: active})
		case event.Reveal:
			b.tl.Markers = append(b.tl.Markers, Marker{Kind: event.KindReveal, Cell: p.Cell, At: active})
		case event.Submit:
			if p.Success {
				at := active
				b.tl.Solved = &at
				b.tl.Duration = active
				return
			}
		}
		b.tl.Duration = active
	}
}

func (b *builder) openFill(c event.Cell, text string, at int64) {
	b.tl.Fills = append(b.tl.Fills, FillInterval{Cell: c, Text: text, Start: at})
	b.fills[c] = len(b.tl.Fills) - 1
}

func (b *builder) closeFill(c event.Cell, at int64) {
	if i, ok := b.fills[c]; ok {
		b.tl.Fills[i].End = ptr(at)
		delete(b.fills, c)
	}
}

func (b *builder) selectCell(c event.Cell, at int64) {
	if b.selection >= 0 {
		b.tl.Selection[b.selection].End = ptr(at)
		prev := *b.selected
		// The outgoing cell falls back to highlight colour if it is still
		// part of the highlighted set.
		if b.members[prev] && prev != c {
			b.openHighlight(prev, at)
		}
	}
	b.closeHighlight(c, at)
	b.tl.Selection = append(b.tl.Selection, CellInterval{Cell: c, Style: StyleSelected, Start: at})
	b.selection = len(b.tl.Selection) - 1
	b.selected = &c
}

func (b *builder) isSelected(c event.Cell) bool {
	return b.selected != nil && *b.selected == c
}

func (b *builder) selectClue(section, label string, at int64) {
	if b.clue >= 0 {
		b.tl.Clues[b.clue].End = ptr(at)
	}
	clue, _ := b.clues.Find(section, label)
	b.tl.Clues = append(b.tl.Clues, ClueInterval{Section: section, Label: label, Text: clue.Text, Start: at})
	b.clue = len(b.tl.Clues) - 1

	next := make(map[event.Cell]bool)
	for _, c := range b.layout.ClueCells(b.grid, section, label) {
		next[c] = true
	}
	for _, c := range sortedCells(b.members) {
		if !next[c] {
			b.removeMember(c, at)
		}
	}
	for _, c := range sortedCells(next) {
		b.addMember(c, at)
	}
}

func (b *builder) addMember(c event.Cell, at int64) {
	b.members[c] = true
	if !b.isSelected(c) {
		b.openHighlight(c, at)
	}
}

func (b *builder) removeMember(c event.Cell, at int64) {
	delete(b.members, c)
	b.closeHighlight(c, at)
}

func (b *builder) openHighlight(c event.Cell, at int64) {
	if _, ok := b.highlight[c]; ok {
		return
	}
	b.tl.Highlights = append(b.tl.Highlights, CellInterval{Cell: c, Style: StyleHighlighted, Start: at})
	b.highlight[c] = len(b.tl.Highlights) - 1
}

func (b *builder) closeHighlight(c event.Cell, at int64) {
	if i, ok := b.highlight[c]; ok {
		b.tl.Highlights[i].End = ptr(at)
		delete(b.highlight, c)
	}
}

func sortedCells(set map[event.Cell]bool) []event.Cell {
	cells := make([]event.Cell, 0, len(set))
	for c := range set {
		cells = append(cells, c)
	}
	slices.SortFunc(cells, func(a, b event.Cell) int {
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})
	return cells
}

// ticks divides [0, total] into one-second clock steps.
func ticks(total int64) []Tick {
	n := (total + 999) / 1000
	if n == 0 {
		n = 1
	}
	out := make([]Tick, 0, n)
	for s := int64(0); s < n; s++ {
		out = append(out, Tick{
			Minute: int(s / 60),
			Second: int(s % 60),
			Start:  s * 1000,
			End:    min((s+1)*1000, total),
		})
	}
	return out
}

func ptr(v int64) *int64 {
	return &v
}
