package persist

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/solvelog/internal/record"
)

// Storage is a key/value store of session records keyed by puzzle identity.
// Every Put replaces the stored record wholesale.
type Storage interface {
	Get(ctx context.Context, identity string) (*record.Record, error)
	Put(ctx context.Context, identity string, rec *record.Record) error
	Delete(ctx context.Context, identity string) error
	List(ctx context.Context) ([]string, error)
}

// Memory is an in-process Storage. Records are held in their serialised form
// so that reads observe exactly what an export would produce.
type Memory struct {
	mu      sync.Mutex
	records map[string][]byte
	putErr  error
	puts    int
}

// NewMemory returns an empty Memory storage.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

// Get implements Storage.
func (m *Memory) Get(_ context.Context, identity string) (*record.Record, error) {
	m.mu.Lock()
	data, ok := m.records[identity]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return record.Decode(data)
}

// Put implements Storage.
func (m *Memory) Put(ctx context.Context, identity string, rec *record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := record.Marshal(rec)
	if err != nil {
		return fmt.Errorf("put %s: %w", identity, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.records[identity] = data
	m.puts++
	return nil
}

// Delete implements Storage.
func (m *Memory) Delete(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[identity]; !ok {
		return ErrNotFound
	}
	delete(m.records, identity)
	return nil
}

// List implements Storage. Identities are returned sorted.
func (m *Memory) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// FailPuts makes every following Put return err. A nil err restores normal
// behaviour.
func (m *Memory) FailPuts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErr = err
}

// Puts returns the number of successful writes.
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
