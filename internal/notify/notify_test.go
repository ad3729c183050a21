package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paywatch/internal/payload"
)

func testEvent(typ EventType, ref string) Event {
	return Event{
		Type:        typ,
		OperationID: "pending:job:addr_test1alice",
		Kind:        payload.KindJob,
		Owner:       "addr_test1alice",
		TxRef:       ref,
		Message:     "test",
		At:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFanout_DeliversToAll(t *testing.T) {
	a := NewRecorder(4)
	b := NewRecorder(4)

	err := Fanout{a, nil, b}.Notify(context.Background(), testEvent(EventConfirmed, "tx-1"))
	require.NoError(t, err)

	assert.Len(t, a.Recent(0), 1)
	assert.Len(t, b.Recent(0), 1)
}

func TestFanout_ContinuesPastFailure(t *testing.T) {
	boom := errors.New("boom")
	failing := SinkFunc(func(context.Context, Event) error { return boom })
	rec := NewRecorder(4)

	err := Fanout{failing, rec}.Notify(context.Background(), testEvent(EventFailed, "tx-1"))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Recent(0), 1)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Notify(context.Background(), testEvent(EventTimedOut, "tx-1")))
}

func TestRecorder_RecentOrder(t *testing.T) {
	rec := NewRecorder(3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, rec.Notify(ctx, testEvent(EventConfirmed, fmt.Sprintf("tx-%d", i))))
	}

	got := rec.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, "tx-3", got[0].TxRef)
	assert.Equal(t, "tx-4", got[1].TxRef)
	assert.Equal(t, "tx-5", got[2].TxRef)

	last := rec.Recent(2)
	require.Len(t, last, 2)
	assert.Equal(t, "tx-4", last[0].TxRef)
	assert.Equal(t, "tx-5", last[1].TxRef)

	assert.Equal(t, int64(5), rec.Total())
}

func TestRecorder_PartiallyFilled(t *testing.T) {
	rec := NewRecorder(0)
	ctx := context.Background()

	require.NoError(t, rec.Notify(ctx, testEvent(EventConfirmed, "tx-1")))
	require.NoError(t, rec.Notify(ctx, testEvent(EventTimedOut, "tx-2")))

	got := rec.Recent(10)
	require.Len(t, got, 2)
	assert.Equal(t, "tx-1", got[0].TxRef)
	assert.Equal(t, 1, rec.Count(EventTimedOut))
	assert.Equal(t, 0, rec.Count(EventFailed))
}

func TestRecorder_Empty(t *testing.T) {
	assert.Empty(t, NewRecorder(2).Recent(5))
}

func TestLogSink_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewLogSink(logger)
	ctx := context.Background()

	confirmed := testEvent(EventConfirmed, "tx-1")
	confirmed.RecordID = "rec-1"
	require.NoError(t, sink.Notify(ctx, confirmed))

	timedOut := testEvent(EventTimedOut, "tx-2")
	timedOut.Reason = "timeout"
	require.NoError(t, sink.Notify(ctx, timedOut))

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "event=operationConfirmed")
	assert.Contains(t, out, "record_id=rec-1")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "reason=timeout")
}
