package recorder

import "github.com/roach88/solvelog/internal/event"

// Observer receives session activity for instrumentation.
// Implementations must be safe for concurrent use.
type Observer interface {
	EventsAccepted(n int)
	BatchRejected(reason RejectReason)
	CandidateDropped(err *event.ValidationError)
	QueueDepth(n int)
}

type noopObserver struct{}

func (noopObserver) EventsAccepted(int)                     {}
func (noopObserver) BatchRejected(RejectReason)             {}
func (noopObserver) CandidateDropped(*event.ValidationError) {}
func (noopObserver) QueueDepth(int)                         {}
