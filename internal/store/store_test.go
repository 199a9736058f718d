package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solvelog/internal/event"
	"github.com/roach88/solvelog/internal/persist"
	"github.com/roach88/solvelog/internal/puzzle"
	"github.com/roach88/solvelog/internal/record"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(events ...event.Event) *record.Record {
	rec := record.Fresh(record.Observation{
		URL:    "https://www.nytimes.com/crosswords/game/mini/2020/05/01",
		Title:  "The Mini Crossword",
		Date:   "Friday, May 1, 2020",
		Byline: "By Joel Fagliano",
		Board: puzzle.Board{
			puzzle.Open(0, 0, ""), puzzle.Open(1, 0, ""),
			puzzle.Block(0, 1), puzzle.Open(1, 1, ""),
		},
		Clues: puzzle.ClueIndex{
			"Across": {{Label: "1", Text: "Yes"}},
			"Down":   {{Label: "2", Text: "No"}},
		},
	})
	rec.Events = append(rec.Events, events...)
	return rec
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "2"))
}

func TestOpen_MigratesDatabaseWithoutRevisions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE records (
			identity      TEXT PRIMARY KEY,
			record        TEXT NOT NULL,
			name          TEXT NOT NULL,
			version       TEXT NOT NULL DEFAULT '',
			url           TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			event_count   INTEGER NOT NULL DEFAULT 0,
			last_event_at INTEGER
		);
		INSERT INTO records (identity, record, name, status) VALUES ('record-1', '{}', 'Old', 'unstarted');
		PRAGMA user_version = 1;
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.verifyPragma("user_version", "2"))

	got, err := s.Summaries(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Old", got[0].Name)
	assert.Equal(t, int64(1), got[0].Revision)

	rec := testRecord()
	require.NoError(t, s.Put(context.Background(), "record-1", rec))
	rev, err := s.Revision(context.Background(), "record-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Get(context.Background(), "record-missing")
	assert.ErrorIs(t, err, persist.ErrNotFound)
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testRecord(
		event.At(1000, event.Start{}),
		event.At(1500, event.Update{Cell: event.Cell{X: 0, Y: 0}, Fill: "A"}),
		event.At(1500, event.Select{Cell: event.Cell{X: 1, Y: 0}}),
		event.At(2000, event.Stop{}),
	)
	id := puzzle.MustIdentity(rec.Board, rec.Clues)

	require.NoError(t, s.Put(ctx, id, rec))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestPut_ReplacesAndBumpsRevision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testRecord(event.At(1000, event.Start{}))
	id := puzzle.MustIdentity(rec.Board, rec.Clues)
	require.NoError(t, s.Put(ctx, id, rec))

	rev, err := s.Revision(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	rec.Events = append(rec.Events, event.At(2000, event.Submit{Success: true}))
	require.NoError(t, s.Put(ctx, id, rec))

	rev, err = s.Revision(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got.Events, 2)
	assert.Equal(t, record.Solved, got.Status())
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testRecord()
	id := puzzle.MustIdentity(rec.Board, rec.Clues)
	require.NoError(t, s.Put(ctx, id, rec))

	require.NoError(t, s.Delete(ctx, id))
	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, persist.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, id), persist.ErrNotFound)
}

func TestSummaries_Revision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testRecord(event.At(1000, event.Start{}))
	for range 3 {
		require.NoError(t, s.Put(ctx, "record-1", rec))
	}

	got, err := s.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].Revision)
}

func TestDeleteAll(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	n, err := s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	rec := testRecord()
	for _, id := range []string{"record-a", "record-b"} {
		require.NoError(t, s.Put(ctx, id, rec))
	}

	n, err = s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestList_BinaryOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	rec := testRecord()
	for _, id := range []string{"record-b", "record-B", "record-a"} {
		require.NoError(t, s.Put(ctx, id, rec))
	}

	ids, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"record-B", "record-a", "record-b"}, ids)
}

func TestSummaries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	recording := testRecord(event.At(1000, event.Start{}), event.At(1200, event.Select{}))
	empty := testRecord()
	empty.Title = ""

	require.NoError(t, s.Put(ctx, "record-1", recording))
	require.NoError(t, s.Put(ctx, "record-2", empty))

	got, err := s.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := record.Summarize("record-1", recording)
	want.Revision = 1
	assert.Equal(t, want, got[0])
	want = record.Summarize("record-2", empty)
	want.Revision = 1
	assert.Equal(t, want, got[1])
	assert.Equal(t, record.Recording, got[0].Status)
	assert.Equal(t, int64(1200), got[0].LastEventAt)
	assert.Equal(t, record.Unstarted, got[1].Status)
	assert.Equal(t, "untitled - By Joel Fagliano - Friday, May 1, 2020", got[1].Name)
}

func TestStore_ImplementsStorage(t *testing.T) {
	var st persist.Storage = createTestStore(t)
	ctx := context.Background()

	rec := testRecord(event.At(10, event.Start{}))
	require.NoError(t, st.Put(ctx, "record-x", rec))

	got, err := st.Get(ctx, "record-x")
	require.NoError(t, err)
	assert.Equal(t, rec.Events, got.Events)
}
