// Package recorder implements the recording state machine.
//
// A Session owns the session record of one puzzle while it is being solved.
// Sensing adapters hand it batches of candidate events, either directly via
// Accept or through a Queue drained by Run. Each batch is processed to
// completion before the next one: candidates are validated and stamped,
// guarded against recording while stopped, and inserted into the log in
// (timestamp, priority) order. The flush policy then decides whether the
// record is handed to the persist.Flusher.
//
// Status is never stored; it is derived from the tail of the log whenever it
// is asked for.
package recorder
