package event

// Kind is the wire name of an event variant.
type Kind string

const (
	KindStart       Kind = "start"
	KindStop        Kind = "stop"
	KindUpdate      Kind = "update"
	KindSelect      Kind = "select"
	KindSelectClue  Kind = "selectClue"
	KindHighlight   Kind = "highlight"
	KindUnhighlight Kind = "unhighlight"
	KindCheck       Kind = "check"
	KindReveal      Kind = "reveal"
	KindSubmit      Kind = "submit"
)

// Kinds lists every kind in priority order.
var Kinds = []Kind{
	KindStart,
	KindReveal,
	KindCheck,
	KindUpdate,
	KindSelect,
	KindSelectClue,
	KindHighlight,
	KindUnhighlight,
	KindStop,
	KindSubmit,
}

// Priority ranks kinds for same-timestamp tie breaks. Lower sorts first.
// Unknown kinds return -1.
func Priority(k Kind) int {
	switch k {
	case KindStart:
		return 0
	case KindReveal:
		return 1
	case KindCheck:
		return 2
	case KindUpdate:
		return 3
	case KindSelect:
		return 4
	case KindSelectClue, KindHighlight, KindUnhighlight:
		return 5
	case KindStop:
		return 6
	case KindSubmit:
		return 7
	default:
		return -1
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return Priority(k) >= 0
}

// CarriesCell reports whether events of kind k carry an (x, y) coordinate.
func (k Kind) CarriesCell() bool {
	switch k {
	case KindUpdate, KindSelect, KindHighlight, KindUnhighlight, KindCheck, KindReveal:
		return true
	default:
		return false
	}
}

// Selection reports whether k only records cursor/clue navigation. These
// kinds are dropped when recording at the minimal log level.
func (k Kind) Selection() bool {
	switch k {
	case KindSelect, KindSelectClue, KindHighlight, KindUnhighlight:
		return true
	default:
		return false
	}
}
