package testutil

// FixedIDGenerator generates the same recording ID every time.
//
// The same scenario with the same FixedIDGenerator produces byte-identical
// stored records.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator returning id, or
// "test-recording-default" when id is empty.
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-recording-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID. Implements recorder.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
