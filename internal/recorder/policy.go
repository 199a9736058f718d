package recorder

import (
	"fmt"

	"github.com/roach88/solvelog/internal/event"
)

// LogLevel selects which candidate kinds are recorded.
type LogLevel string

const (
	// LogFull records every kind.
	LogFull LogLevel = "full"
	// LogMinimal drops select, selectClue, highlight and unhighlight.
	LogMinimal LogLevel = "minimal"
)

// ParseLogLevel validates a configured log level.
func ParseLogLevel(s string) (LogLevel, error) {
	switch LogLevel(s) {
	case LogFull, LogMinimal:
		return LogLevel(s), nil
	case "":
		return LogFull, nil
	default:
		return "", fmt.Errorf("unknown event log level %q (want full or minimal)", s)
	}
}

// Records reports whether candidates of kind k are kept at this level.
func (l LogLevel) Records(k event.Kind) bool {
	return l != LogMinimal || !k.Selection()
}

// DefaultFlushThreshold is the number of accepted events after which the
// record is written even without a stop or submit.
const DefaultFlushThreshold = 30

// Policy controls a session's acceptance and flushing.
type Policy struct {
	// FlushThreshold triggers a write after this many accepted events. Zero
	// disables count-based writes.
	FlushThreshold int

	// ResumeAfterSolve keeps accepting batches after a successful submit.
	// Defaults to false: a solved session disengages.
	ResumeAfterSolve bool

	LogLevel LogLevel
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		FlushThreshold: DefaultFlushThreshold,
		LogLevel:       LogFull,
	}
}
