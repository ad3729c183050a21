package reconcile

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/paywatch/internal/commit"
	"github.com/roach88/paywatch/internal/notify"
	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/pending"
	"github.com/roach88/paywatch/internal/store"
	"github.com/roach88/paywatch/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store     *store.Store
	oracle    *testutil.ScriptedOracle
	clock     *testutil.ManualClock
	events    *notify.Recorder
	committer *commit.Committer
	metrics   *Metrics
	loop      *Loop
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return newFixtureWithStore(t, s, s, opts...)
}

// newFixtureWithStore builds a loop over ls, with records written to s.
func newFixtureWithStore(t *testing.T, s *store.Store, ls Store, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		store:   s,
		oracle:  testutil.NewScriptedOracle(),
		clock:   testutil.NewManualClock(t0),
		events:  notify.NewRecorder(64),
		metrics: NewMetrics(nil),
	}
	f.committer = commit.New(s.Writers(),
		commit.WithSink(f.events),
		commit.WithClock(f.clock),
		commit.WithLogger(discardLogger()),
	)

	base := []Option{
		WithClock(f.clock),
		WithSink(f.events),
		WithLogger(discardLogger()),
		WithMetrics(f.metrics),
	}
	loop, err := New(ls, f.oracle, f.committer, append(base, opts...)...)
	require.NoError(t, err)
	f.loop = loop
	return f
}

func jobPosting() payload.JobPosting {
	return payload.JobPosting{
		Title:       "Plutus Engineer",
		Company:     "Lace Labs",
		Description: "Write validators.",
		Location:    "Remote",
		Category:    "engineering",
		ApplyURL:    "https://example.com/apply",
		ListingDays: 30,
	}
}

// submit stores a job operation for owner submitted at the clock's current time.
func (f *fixture) submit(t *testing.T, owner, ref string) pending.Operation {
	t.Helper()
	op, err := pending.New(owner, ref, jobPosting(), f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.loop.Submit(context.Background(), op))
	return op
}

func (f *fixture) jobCount(t *testing.T, ref string) int {
	t.Helper()
	var n int
	require.NoError(t, f.store.DB().QueryRow(`SELECT COUNT(*) FROM jobs WHERE tx_ref = ?`, ref).Scan(&n))
	return n
}

func (f *fixture) pendingCount(t *testing.T) int {
	t.Helper()
	ops, err := f.store.ListOperations(context.Background())
	require.NoError(t, err)
	return len(ops)
}
