package persist

// Batch summarises one accepted candidate batch.
type Batch struct {
	// HasStop is set when any accepted event is a stop.
	HasStop bool

	// HasSuccessfulSubmit is set when any accepted event is a submit with
	// success = true.
	HasSuccessfulSubmit bool

	// Accepted counts the events inserted into the log.
	Accepted int
}

// ShouldFlush reports whether the record must be written after b.
//
// A stop or successful submit always flushes. Otherwise a positive threshold
// flushes once sinceLastFlush reaches it; a threshold of 0 disables
// count-based flushing.
func ShouldFlush(b Batch, sinceLastFlush, threshold int) bool {
	if b.HasStop || b.HasSuccessfulSubmit {
		return true
	}
	return threshold > 0 && sinceLastFlush >= threshold
}
