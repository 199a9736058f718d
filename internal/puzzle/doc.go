// Package puzzle models the static structure of a crossword as captured on
// first observation: the board snapshot and the clue index.
//
// It also derives the content-addressed puzzle identity that keys session
// records in storage. The identity depends only on which cells are fillable
// and on the clue text, never on solve progress or on the order in which a
// page happened to report its cells.
package puzzle
