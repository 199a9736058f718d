package replay

import (
	"fmt"

	"github.com/roach88/solvelog/internal/event"
)

// Style is the colouring of a cell interval.
type Style string

const (
	StyleSelected    Style = "selected"
	StyleHighlighted Style = "highlighted"
)

// FillInterval shows Text in Cell from Start until End.
type FillInterval struct {
	Cell  event.Cell `json:"cell"`
	Text  string     `json:"text"`
	Start int64      `json:"start"`
	// End is nil when the interval stays open to the end of the timeline.
	End *int64 `json:"end,omitempty"`
}

// CellInterval colours Cell from Start until End.
type CellInterval struct {
	Cell  event.Cell `json:"cell"`
	Style Style      `json:"style"`
	Start int64      `json:"start"`
	End   *int64     `json:"end,omitempty"`
}

// ClueInterval shows a clue as the active clue from Start until End.
type ClueInterval struct {
	Section string `json:"section"`
	Label   string `json:"label"`
	Text    string `json:"text,omitempty"`
	Start   int64  `json:"start"`
	End     *int64 `json:"end,omitempty"`
}

// Marker is a point event on a cell: a check or a reveal.
type Marker struct {
	Kind event.Kind `json:"kind"`
	Cell event.Cell `json:"cell"`
	At   int64      `json:"at"`
}

// Tick is one step of the running clock display, shown from Start to End.
type Tick struct {
	Minute int   `json:"minute"`
	Second int   `json:"second"`
	Start  int64 `json:"start"`
	End    int64 `json:"end"`
}

// Label renders the tick as m:ss.
func (t Tick) Label() string {
	return fmt.Sprintf("%d:%02d", t.Minute, t.Second)
}

// Timeline is the replay of one session record.
type Timeline struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	Fills      []FillInterval `json:"fills"`
	Selection  []CellInterval `json:"selection"`
	Highlights []CellInterval `json:"highlights"`
	Clues      []ClueInterval `json:"clues"`
	Markers    []Marker       `json:"markers"`

	// Solved is the time of the successful submit, if any.
	Solved *int64 `json:"solved,omitempty"`

	// Duration is the playback time of the last processed event.
	Duration int64 `json:"duration"`

	// Speed is the playback rate the times above were scaled by.
	Speed float64 `json:"speed"`

	// Elapsed and SolveTime are Duration and Solved in unscaled active time.
	Elapsed   int64  `json:"elapsed"`
	SolveTime *int64 `json:"solveTime,omitempty"`

	Clock []Tick `json:"clock"`
}

// FillsAt returns the text shown in each cell at time t.
func (tl *Timeline) FillsAt(t int64) map[event.Cell]string {
	out := make(map[event.Cell]string)
	for _, f := range tl.Fills {
		if covers(f.Start, f.End, t) {
			out[f.Cell] = f.Text
		}
	}
	return out
}

// StyleAt returns the colouring of c at time t, or "" when it is plain.
func (tl *Timeline) StyleAt(c event.Cell, t int64) Style {
	for _, iv := range tl.Selection {
		if iv.Cell == c && covers(iv.Start, iv.End, t) {
			return StyleSelected
		}
	}
	for _, iv := range tl.Highlights {
		if iv.Cell == c && covers(iv.Start, iv.End, t) {
			return StyleHighlighted
		}
	}
	return ""
}

// covers reports whether [start, end) contains t; a nil end is unbounded.
func covers(start int64, end *int64, t int64) bool {
	return t >= start && (end == nil || t < *end)
}
