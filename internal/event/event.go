package event

import "cmp"

// Cell is a grid coordinate. X is the column, Y the row.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Payload is the sealed set of event variants.
type Payload interface {
	Kind() Kind
	payload()
}

// Start marks the solver (re)starting the clock.
type Start struct{}

// Stop marks the clock being paused or the page being left.
type Stop struct{}

// Update records a cell's new fill. An empty Fill means the cell was cleared.
type Update struct {
	Cell
	Fill string
}

// Select records the cursor moving to a cell.
type Select struct {
	Cell
}

// SelectClue records a clue becoming the active clue.
type SelectClue struct {
	Section string
	Label   string
}

// Highlight records a cell joining the highlighted set.
type Highlight struct {
	Cell
}

// Unhighlight records a cell leaving the highlighted set.
type Unhighlight struct {
	Cell
}

// Check records a cell being checked.
type Check struct {
	Cell
}

// Reveal records a cell being revealed.
type Reveal struct {
	Cell
}

// Submit records a submission of the whole board.
type Submit struct {
	Success bool
}

func (Start) Kind() Kind       { return KindStart }
func (Stop) Kind() Kind        { return KindStop }
func (Update) Kind() Kind      { return KindUpdate }
func (Select) Kind() Kind      { return KindSelect }
func (SelectClue) Kind() Kind  { return KindSelectClue }
func (Highlight) Kind() Kind   { return KindHighlight }
func (Unhighlight) Kind() Kind { return KindUnhighlight }
func (Check) Kind() Kind       { return KindCheck }
func (Reveal) Kind() Kind      { return KindReveal }
func (Submit) Kind() Kind      { return KindSubmit }

func (Start) payload()       {}
func (Stop) payload()        {}
func (Update) payload()      {}
func (Select) payload()      {}
func (SelectClue) payload()  {}
func (Highlight) payload()   {}
func (Unhighlight) payload() {}
func (Check) payload()       {}
func (Reveal) payload()      {}
func (Submit) payload()      {}

// Event is one entry of a solve log.
// Timestamp is wall-clock milliseconds since the Unix epoch.
type Event struct {
	Timestamp int64
	Payload   Payload
}

// At builds an event at the given timestamp.
func At(ts int64, p Payload) Event {
	return Event{Timestamp: ts, Payload: p}
}

// Kind returns the payload kind, or "" for an event without payload.
func (e Event) Kind() Kind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// Cell returns the coordinate carried by the payload, if any.
func (e Event) Cell() (Cell, bool) {
	switch p := e.Payload.(type) {
	case Update:
		return p.Cell, true
	case Select:
		return p.Cell, true
	case Highlight:
		return p.Cell, true
	case Unhighlight:
		return p.Cell, true
	case Check:
		return p.Cell, true
	case Reveal:
		return p.Cell, true
	default:
		return Cell{}, false
	}
}

// IsSuccessfulSubmit reports whether e is a submit with success = true.
func (e Event) IsSuccessfulSubmit() bool {
	s, ok := e.Payload.(Submit)
	return ok && s.Success
}

// Compare orders events by timestamp, then by kind priority.
// It returns -1, 0 or +1.
func Compare(a, b Event) int {
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(Priority(a.Kind()), Priority(b.Kind()))
}

// InsertStable inserts e into the sorted log and returns the new log.
//
// The scan runs backward from the tail and stops at the first event that
// does not sort after e, so e lands after every event it compares equal to.
// Events already in the log never move relative to each other.
func InsertStable(log []Event, e Event) []Event {
	i := len(log)
	for i > 0 && Compare(log[i-1], e) > 0 {
		i--
	}
	log = append(log, Event{})
	copy(log[i+1:], log[i:])
	log[i] = e
	return log
}

// Sorted reports whether log is ordered by Compare.
func Sorted(log []Event) bool {
	for i := 1; i < len(log); i++ {
		if Compare(log[i-1], log[i]) > 0 {
			return false
		}
	}
	return true
}
