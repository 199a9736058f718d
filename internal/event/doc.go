// Package event defines the solve-log event model.
//
// An Event is a timestamp plus a sealed Payload variant. Every package that
// interprets events switches on the payload type; the set of variants is
// closed (Start, Stop, Update, Select, SelectClue, Highlight, Unhighlight,
// Check, Reveal, Submit).
//
// Events are totally ordered by Compare: timestamp first, then Priority of
// the kind. Priority only exists to break ties between events observed at
// the same instant.
//
// This package imports nothing internal.
package event
