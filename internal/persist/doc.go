// Package persist decides when a session record is written and performs the
// writes.
//
// ShouldFlush is the flush policy. Flusher issues full-record overwrites to a
// Storage, serialised per identity so that a write can never be overtaken by
// a later write carrying a shorter log. Flush failures are reported to the
// caller and never retried.
package persist
