package puzzle

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// IdentityPrefix starts every puzzle identity.
const IdentityPrefix = "record-"

// DomainIdentity separates identity digests from any other use of the same
// bytes. The version suffix allows a future change of canonical form.
const DomainIdentity = "solvelog/puzzle/v1"

// Identity computes the puzzle identity for a board and clue index.
//
// Only fillable cell coordinates and clue (label, text) pairs contribute.
// Cells are sorted by x then y and sections by name, so the result does not
// depend on input order or on any fill progress.
func Identity(board Board, clues ClueIndex) (string, error) {
	canonical, err := CanonicalContent(board, clues)
	if err != nil {
		return "", fmt.Errorf("puzzle identity: %w", err)
	}
	return IdentityPrefix + hashWithDomain(DomainIdentity, canonical), nil
}

// MustIdentity is Identity for known-good inputs such as test fixtures.
func MustIdentity(board Board, clues ClueIndex) string {
	id, err := Identity(board, clues)
	if err != nil {
		panic(err)
	}
	return id
}

// CanonicalContent returns the canonical bytes hashed by Identity.
func CanonicalContent(board Board, clues ClueIndex) ([]byte, error) {
	cells := board.FillableCells()
	cellList := make([]any, len(cells))
	for i, c := range cells {
		cellList[i] = []any{c.X, c.Y}
	}

	sections := clues.Sections()
	sectionList := make([]any, len(sections))
	for i, name := range sections {
		pairs := make([]any, len(clues[name]))
		for j, c := range clues[name] {
			pairs[j] = []any{c.Label, c.Text}
		}
		sectionList[i] = []any{name, pairs}
	}

	return marshalCanonical(map[string]any{
		"cells": cellList,
		"clues": sectionList,
	})
}

// hashWithDomain computes SHA1(domain + 0x00 + data) as lowercase hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha1.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
