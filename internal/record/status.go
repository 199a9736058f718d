package record

import (
	"fmt"

	"github.com/roach88/solvelog/internal/event"
)

// Status is the recording status derived from the tail of an event log.
type Status int

const (
	// Unstarted means the log is empty.
	Unstarted Status = iota
	// Recording means the last event is neither a stop nor a successful submit.
	Recording
	// Stopped means the last event is a stop.
	Stopped
	// Solved means the last event is a successful submit.
	Solved
)

// StatusOf derives the status of a log.
func StatusOf(events []event.Event) Status {
	if len(events) == 0 {
		return Unstarted
	}
	last := events[len(events)-1]
	switch {
	case last.Kind() == event.KindStop:
		return Stopped
	case last.IsSuccessfulSubmit():
		return Solved
	default:
		return Recording
	}
}

func (s Status) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	case Solved:
		return "solved"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Label is the status as shown in record listings.
func (s Status) Label() string {
	switch s {
	case Recording:
		return "in progress"
	default:
		return s.String()
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{Unstarted, Recording, Stopped, Solved} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
