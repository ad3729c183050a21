package reconcile

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paywatch/internal/notify"
	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/pending"
	"github.com/roach88/paywatch/internal/testutil"
)

func testOperation(t *testing.T, p payload.Payload) pending.Operation {
	t.Helper()
	op, err := pending.New("addr_test1alice", "tx-1", p, t0)
	require.NoError(t, err)
	return op
}

func TestReporter_Timeout(t *testing.T) {
	rec := notify.NewRecorder(4)
	clock := testutil.NewManualClock(t0.Add(DefaultTimeout))
	r := NewReporter(rec, clock, discardLogger())

	r.ReportTimeout(context.Background(), testOperation(t, payload.Project{Name: "x"}))

	events := rec.Recent(0)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, notify.EventTimedOut, ev.Type)
	assert.Equal(t, payload.KindProject, ev.Kind)
	assert.Equal(t, "tx-1", ev.TxRef)
	assert.Equal(t, t0.Add(DefaultTimeout), ev.At)
	assert.Contains(t, ev.Message, "project creation")
	assert.Contains(t, ev.Message, "may still succeed on-chain")
}

func TestReporter_TimeoutAfterCommitFailures(t *testing.T) {
	rec := notify.NewRecorder(4)
	r := NewReporter(rec, testutil.NewManualClock(t0.Add(DefaultTimeout)), discardLogger())

	op := testOperation(t, payload.Project{Name: "x"})
	op.Attempts = 3
	r.ReportTimeout(context.Background(), op)

	events := rec.Recent(0)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, notify.EventTimedOut, ev.Type)
	assert.Equal(t, "commit_failed", ev.Reason)
	assert.Contains(t, ev.Message, "confirmed on-chain")
	assert.Contains(t, ev.Message, "tx-1")
	assert.NotContains(t, ev.Message, "may still succeed")
}

func TestReporter_Failure(t *testing.T) {
	rec := notify.NewRecorder(4)
	r := NewReporter(rec, testutil.NewManualClock(t0), discardLogger())

	r.ReportFailure(context.Background(), testOperation(t, payload.Contribution{ProjectID: "p"}), "script failure")

	events := rec.Recent(0)
	require.Len(t, events, 1)
	assert.Equal(t, notify.EventFailed, events[0].Type)
	assert.Equal(t, "script failure", events[0].Reason)
	assert.Contains(t, events[0].Message, "contribution")
	assert.Contains(t, events[0].Message, "submit it again")
}

func TestReporter_SinkPanicRecovered(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := notify.SinkFunc(func(context.Context, notify.Event) error { panic("sink exploded") })
	r := NewReporter(sink, nil, logger)

	assert.NotPanics(t, func() {
		r.ReportTimeout(context.Background(), testOperation(t, jobPosting()))
		r.ReportFailure(context.Background(), testOperation(t, jobPosting()), "x")
	})
	assert.Contains(t, buf.String(), "notification sink panicked")
}

func TestReporter_SinkErrorLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := notify.SinkFunc(func(context.Context, notify.Event) error { return errors.New("smtp down") })
	r := NewReporter(sink, nil, logger)

	r.ReportFailure(context.Background(), testOperation(t, jobPosting()), "x")
	assert.Contains(t, buf.String(), "smtp down")
}

func TestReporter_NilSinkDiscards(t *testing.T) {
	r := NewReporter(nil, nil, nil)
	assert.NotPanics(t, func() {
		r.ReportTimeout(context.Background(), testOperation(t, jobPosting()))
	})
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "job posting", describe(payload.KindJob))
	assert.Equal(t, "job extension", describe(payload.KindExtend))
	assert.Equal(t, "project creation", describe(payload.KindProject))
	assert.Equal(t, "contribution", describe(payload.KindFunding))
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	for _, cfg := range []Config{
		{Interval: 0, Timeout: 1, OracleWait: 1},
		{Interval: 1, Timeout: -1, OracleWait: 1},
		{Interval: 1, Timeout: 1, OracleWait: 0},
	} {
		assert.Error(t, cfg.Validate())
	}
}
