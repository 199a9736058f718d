package event

import (
	"encoding/json"
	"fmt"
)

// Candidate is an event as delivered by a sensing adapter, before it has
// been validated and (if needed) timestamped.
//
// Every payload field is optional on the wire; Event checks that the fields
// required by Kind are present. The same shape is used for stored events, in
// which case Timestamp is always set.
type Candidate struct {
	Kind      Kind    `json:"kind"`
	Timestamp *int64  `json:"timestamp,omitempty"`
	X         *int    `json:"x,omitempty"`
	Y         *int    `json:"y,omitempty"`
	Fill      *string `json:"fill,omitempty"`
	Section   *string `json:"section,omitempty"`
	Label     *string `json:"label,omitempty"`
	Success   *bool   `json:"success,omitempty"`
}

// UnmarshalJSON accepts the current field names as well as the older
// "type", "clueSection" and "clueLabel" names.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	type plain Candidate
	var w struct {
		plain
		Type        Kind    `json:"type"`
		ClueSection *string `json:"clueSection"`
		ClueLabel   *string `json:"clueLabel"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Candidate(w.plain)
	if c.Kind == "" {
		c.Kind = w.Type
	}
	if c.Section == nil {
		c.Section = w.ClueSection
	}
	if c.Label == nil {
		c.Label = w.ClueLabel
	}
	return nil
}

// CandidateOf returns an untimestamped candidate for p.
func CandidateOf(p Payload) Candidate {
	c := FromEvent(Event{Payload: p})
	c.Timestamp = nil
	return c
}

// FromEvent converts a validated event back to its wire form.
func FromEvent(e Event) Candidate {
	ts := e.Timestamp
	c := Candidate{Kind: e.Kind(), Timestamp: &ts}
	if cell, ok := e.Cell(); ok {
		x, y := cell.X, cell.Y
		c.X, c.Y = &x, &y
	}
	switch p := e.Payload.(type) {
	case Update:
		fill := p.Fill
		c.Fill = &fill
	case SelectClue:
		section, label := p.Section, p.Label
		c.Section, c.Label = &section, &label
	case Submit:
		success := p.Success
		c.Success = &success
	}
	return c
}

// Event validates the candidate and converts it to an Event. A candidate
// without a timestamp is stamped with observedAt.
func (c Candidate) Event(observedAt int64) (Event, error) {
	ts := observedAt
	if c.Timestamp != nil {
		ts = *c.Timestamp
	}
	if ts < 0 {
		return Event{}, &ValidationError{Kind: c.Kind, Field: "timestamp", Message: "must not be negative"}
	}

	var cell Cell
	if c.Kind.CarriesCell() {
		if c.X == nil {
			return Event{}, missing(c.Kind, "x")
		}
		if c.Y == nil {
			return Event{}, missing(c.Kind, "y")
		}
		if *c.X < 0 || *c.Y < 0 {
			return Event{}, &ValidationError{
				Kind:    c.Kind,
				Field:   "x/y",
				Message: fmt.Sprintf("coordinate (%d, %d) must be non-negative", *c.X, *c.Y),
			}
		}
		cell = Cell{X: *c.X, Y: *c.Y}
	}

	var p Payload
	switch c.Kind {
	case KindStart:
		p = Start{}
	case KindStop:
		p = Stop{}
	case KindUpdate:
		// A null fill marks block cells in a board snapshot; it is never a
		// valid update.
		if c.Fill == nil {
			return Event{}, missing(c.Kind, "fill")
		}
		p = Update{Cell: cell, Fill: *c.Fill}
	case KindSelect:
		p = Select{Cell: cell}
	case KindSelectClue:
		if c.Section == nil {
			return Event{}, missing(c.Kind, "section")
		}
		if c.Label == nil {
			return Event{}, missing(c.Kind, "label")
		}
		p = SelectClue{Section: *c.Section, Label: *c.Label}
	case KindHighlight:
		p = Highlight{Cell: cell}
	case KindUnhighlight:
		p = Unhighlight{Cell: cell}
	case KindCheck:
		p = Check{Cell: cell}
	case KindReveal:
		p = Reveal{Cell: cell}
	case KindSubmit:
		if c.Success == nil {
			return Event{}, missing(c.Kind, "success")
		}
		p = Submit{Success: *c.Success}
	case "":
		return Event{}, missing(c.Kind, "kind")
	default:
		return Event{}, &ValidationError{Kind: c.Kind, Field: "kind", Message: "unknown event kind"}
	}
	return Event{Timestamp: ts, Payload: p}, nil
}

// MarshalJSON encodes the event in its wire form.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("marshal event: missing payload")
	}
	return json.Marshal(FromEvent(e))
}

// UnmarshalJSON decodes and validates a stored event. Stored events must
// carry a timestamp.
func (e *Event) UnmarshalJSON(data []byte) error {
	var c Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	if c.Timestamp == nil {
		return missing(c.Kind, "timestamp")
	}
	ev, err := c.Event(0)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}
