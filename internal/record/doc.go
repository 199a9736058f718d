// Package record defines the session record: the unit of persistence for one
// puzzle solve.
//
// A record carries page metadata, the board snapshot and clue index captured
// at first observation, and the ordered event log. Metadata follow the live
// page on every observation; the snapshot, clue index and events are kept
// once present and are only ever extended through the event log.
//
// Records serialise to a self-describing JSON document. Older documents that
// use the initialState/clueSections/userAgent keys are accepted on decode.
package record
