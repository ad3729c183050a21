package commit

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paywatch/internal/notify"
	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/pending"
	"github.com/roach88/paywatch/internal/record"
	"github.com/roach88/paywatch/internal/store"
	"github.com/roach88/paywatch/internal/testutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func createTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func jobOperation(t *testing.T, ref string) pending.Operation {
	t.Helper()
	op, err := pending.New("addr_test1alice", ref, payload.JobPosting{
		Title:       "  Haskell Developer ",
		Company:     "Café Labs",
		Description: "Build things.",
		Location:    "Remote",
		Category:    "engineering",
		ApplyURL:    "https://example.com/apply",
		ListingDays: 30,
	}, epoch)
	require.NoError(t, err)
	return op
}

func TestCommit_FirstInsertEmitsConfirmed(t *testing.T) {
	s := createTestStore(t)
	rec := notify.NewRecorder(8)
	c := New(s.Writers(),
		WithSink(rec),
		WithIDGenerator(NewFixedGenerator("rec-1")),
		WithClock(testutil.NewManualClock(epoch.Add(30*time.Second))),
	)

	res, err := c.Commit(context.Background(), jobOperation(t, "tx-1"))
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.Equal(t, "rec-1", res.Record.ID)
	assert.Equal(t, "tx-1", res.Record.TxRef)

	job, ok := res.Record.Payload.(payload.JobPosting)
	require.True(t, ok)
	assert.Equal(t, "Haskell Developer", job.Title)
	assert.Equal(t, "Café Labs", job.Company)

	events := rec.Recent(0)
	require.Len(t, events, 1)
	assert.Equal(t, notify.EventConfirmed, events[0].Type)
	assert.Equal(t, "rec-1", events[0].RecordID)
	assert.Equal(t, pending.ID("pending:job:addr_test1alice"), events[0].OperationID)
	assert.Equal(t, epoch.Add(30*time.Second), events[0].At)
}

func TestCommit_RepeatIsNoOp(t *testing.T) {
	s := createTestStore(t)
	rec := notify.NewRecorder(8)
	c := New(s.Writers(), WithSink(rec), WithIDGenerator(NewFixedGenerator("rec-1")))
	op := jobOperation(t, "tx-1")
	ctx := context.Background()

	_, err := c.Commit(ctx, op)
	require.NoError(t, err)

	// FixedGenerator panics if a second id is drawn, so the repeat must
	// stop at FindByReference.
	res, err := c.Commit(ctx, op)
	require.NoError(t, err)
	assert.False(t, res.Inserted)
	assert.Equal(t, "rec-1", res.Record.ID)

	assert.Equal(t, 1, rec.Count(notify.EventConfirmed))
}

func TestCommit_ConcurrentCommitsWriteOnce(t *testing.T) {
	s := createTestStore(t)
	rec := notify.NewRecorder(32)
	op := jobOperation(t, "tx-1")

	const committers = 8
	var wg sync.WaitGroup
	for i := 0; i < committers; i++ {
		// Separate Committers model separate processes sharing the store.
		c := New(s.Writers(), WithSink(rec))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Commit(context.Background(), op)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM jobs WHERE tx_ref = ?`, "tx-1").Scan(&count))
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, rec.Count(notify.EventConfirmed))
}

// racingWriter hides the existing record from the first lookup, as if
// another process inserted between FindByReference and Insert.
type racingWriter struct {
	*testutil.MemoryWriter
	hidden bool
}

func (w *racingWriter) FindByReference(ctx context.Context, ref string) (*record.Record, error) {
	if !w.hidden {
		w.hidden = true
		return nil, nil
	}
	return w.MemoryWriter.FindByReference(ctx, ref)
}

func TestCommit_LostInsertRaceSucceedsSilently(t *testing.T) {
	mem := testutil.NewMemoryWriter()
	_, err := mem.Insert(context.Background(), record.Record{ID: "other", Kind: payload.KindJob, TxRef: "tx-1"})
	require.NoError(t, err)

	rec := notify.NewRecorder(8)
	c := New(map[payload.Kind]record.Writer{payload.KindJob: &racingWriter{MemoryWriter: mem}}, WithSink(rec))

	res, err := c.Commit(context.Background(), jobOperation(t, "tx-1"))
	require.NoError(t, err)
	assert.False(t, res.Inserted)
	assert.Equal(t, "other", res.Record.ID)
	assert.Zero(t, rec.Total())
}

func TestCommit_InsertFailure(t *testing.T) {
	flaky := testutil.NewFlakyWriter(testutil.NewMemoryWriter(), 1)
	rec := notify.NewRecorder(8)
	c := New(map[payload.Kind]record.Writer{payload.KindJob: flaky}, WithSink(rec))
	op := jobOperation(t, "tx-1")
	ctx := context.Background()

	_, err := c.Commit(ctx, op)
	assert.ErrorIs(t, err, testutil.ErrInjected)
	assert.Zero(t, rec.Total())

	res, err := c.Commit(ctx, op)
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.Equal(t, 1, rec.Count(notify.EventConfirmed))
}

func TestCommit_UnknownKind(t *testing.T) {
	c := New(nil)

	_, err := c.Commit(context.Background(), jobOperation(t, "tx-1"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestCommit_KindMismatch(t *testing.T) {
	c := New(map[payload.Kind]record.Writer{payload.KindJob: testutil.NewMemoryWriter()})
	op := jobOperation(t, "tx-1")
	op.Kind = payload.KindProject

	_, err := c.Commit(context.Background(), op)
	assert.ErrorIs(t, err, record.ErrWrongKind)
}

func TestCommit_SinkPanicDoesNotFailCommit(t *testing.T) {
	sink := notify.SinkFunc(func(context.Context, notify.Event) error { panic("sink exploded") })
	c := New(map[payload.Kind]record.Writer{payload.KindJob: testutil.NewMemoryWriter()}, WithSink(sink))

	res, err := c.Commit(context.Background(), jobOperation(t, "tx-1"))
	require.NoError(t, err)
	assert.True(t, res.Inserted)
}

func TestCommit_ExtensionAgainstStore(t *testing.T) {
	s := createTestStore(t)
	c := New(s.Writers(), WithIDGenerator(NewFixedGenerator("job-1", "ext-1")), WithClock(testutil.NewManualClock(epoch)))
	ctx := context.Background()

	_, err := c.Commit(ctx, jobOperation(t, "tx-job"))
	require.NoError(t, err)

	ext, err := pending.New("addr_test1alice", "tx-ext", payload.JobExtension{JobID: "job-1", Days: 7}, epoch)
	require.NoError(t, err)
	res, err := c.Commit(ctx, ext)
	require.NoError(t, err)
	assert.True(t, res.Inserted)

	var extensions int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM job_extensions WHERE job_id = ?`, "job-1").Scan(&extensions))
	assert.Equal(t, 1, extensions)
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.Generate()
		assert.Len(t, id, 36)
		assert.False(t, seen[id], fmt.Sprintf("duplicate id %s", id))
		seen[id] = true
	}
}
