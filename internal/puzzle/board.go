package puzzle

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/roach88/solvelog/internal/event"
)

// ShapeCircle is the only extra shape currently reported by boards.
const ShapeCircle = "circle"

// Square describes one board cell at first observation.
//
// Fill is nil for a block (non-fillable) cell, "" for an empty fillable cell,
// and the pre-filled text otherwise.
type Square struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Fill       *string `json:"fill"`
	Label      string  `json:"label,omitempty"`
	ExtraShape string  `json:"extraShape,omitempty"`
}

// Fillable reports whether the square can hold a letter.
func (s Square) Fillable() bool {
	return s.Fill != nil
}

// Cell returns the square's coordinate.
func (s Square) Cell() event.Cell {
	return event.Cell{X: s.X, Y: s.Y}
}

// Open returns a fillable square with the given fill.
func Open(x, y int, fill string) Square {
	return Square{X: x, Y: y, Fill: &fill}
}

// Block returns a non-fillable square.
func Block(x, y int) Square {
	return Square{X: x, Y: y}
}

// Board is the ordered board snapshot.
type Board []Square

// Clone returns a deep copy of the board.
func (b Board) Clone() Board {
	if b == nil {
		return nil
	}
	out := make(Board, len(b))
	for i, s := range b {
		out[i] = s
		if s.Fill != nil {
			fill := *s.Fill
			out[i].Fill = &fill
		}
	}
	return out
}

// FillableCells returns the coordinates of fillable cells sorted by x, then y.
func (b Board) FillableCells() []event.Cell {
	cells := make([]event.Cell, 0, len(b))
	for _, s := range b {
		if s.Fillable() {
			cells = append(cells, s.Cell())
		}
	}
	slices.SortFunc(cells, compareCells)
	return slices.CompactFunc(cells, func(a, b event.Cell) bool { return a == b })
}

// Validate checks that coordinates are non-negative and unique.
func (b Board) Validate() error {
	seen := make(map[event.Cell]bool, len(b))
	for i, s := range b {
		if s.X < 0 || s.Y < 0 {
			return fmt.Errorf("board[%d]: coordinate (%d, %d) must be non-negative", i, s.X, s.Y)
		}
		if seen[s.Cell()] {
			return fmt.Errorf("board[%d]: duplicate cell (%d, %d)", i, s.X, s.Y)
		}
		seen[s.Cell()] = true
	}
	return nil
}

func compareCells(a, b event.Cell) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Y, b.Y)
}

// Grid indexes a board by coordinate.
type Grid struct {
	squares map[event.Cell]Square
	labels  map[string]event.Cell
	width   int
	height  int
}

// NewGrid indexes b. When a label appears on more than one square, the first
// one wins.
func NewGrid(b Board) *Grid {
	g := &Grid{
		squares: make(map[event.Cell]Square, len(b)),
		labels:  make(map[string]event.Cell),
	}
	for _, s := range b {
		g.squares[s.Cell()] = s
		if s.Label != "" {
			if _, ok := g.labels[s.Label]; !ok {
				g.labels[s.Label] = s.Cell()
			}
		}
		g.width = max(g.width, s.X+1)
		g.height = max(g.height, s.Y+1)
	}
	return g
}

// Size returns the grid width (columns) and height (rows).
func (g *Grid) Size() (width, height int) {
	return g.width, g.height
}

// Square returns the square at c.
func (g *Grid) Square(c event.Cell) (Square, bool) {
	s, ok := g.squares[c]
	return s, ok
}

// Fillable reports whether c is on the board and fillable.
func (g *Grid) Fillable(c event.Cell) bool {
	s, ok := g.squares[c]
	return ok && s.Fillable()
}

// LabelCell returns the cell carrying label.
func (g *Grid) LabelCell(label string) (event.Cell, bool) {
	c, ok := g.labels[label]
	return c, ok
}

// Direction is the axis along which a clue's answer runs.
type Direction int

const (
	// Across runs along a row, increasing x.
	Across Direction = iota
	// Down runs along a column, increasing y.
	Down
)

func (d Direction) String() string {
	switch d {
	case Across:
		return "across"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Run returns the contiguous fillable cells starting at start and extending
// in direction d, stopping at the first block, missing square or grid edge.
// It returns nil when start itself is not fillable.
func (g *Grid) Run(start event.Cell, d Direction) []event.Cell {
	var cells []event.Cell
	for c := start; g.Fillable(c); {
		cells = append(cells, c)
		if d == Across {
			c.X++
		} else {
			c.Y++
		}
	}
	return cells
}
