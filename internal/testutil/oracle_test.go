package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paywatch/internal/ledger"
	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/record"
)

func TestScriptedOracle_LastStepRepeats(t *testing.T) {
	o := NewScriptedOracle()
	o.Statuses("tx-1", ledger.StatusPending, ledger.StatusConfirmed)
	ctx := context.Background()

	for _, want := range []ledger.Status{ledger.StatusPending, ledger.StatusConfirmed, ledger.StatusConfirmed} {
		got, err := o.CheckStatus(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 3, o.Calls("tx-1"))
}

func TestScriptedOracle_UnscriptedIsPending(t *testing.T) {
	o := NewScriptedOracle()

	got, err := o.CheckStatus(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got)
	assert.Equal(t, 1, o.TotalCalls())
}

func TestScriptedOracle_ErrorAndBlock(t *testing.T) {
	o := NewScriptedOracle()
	boom := errors.New("rate limited")
	o.Script("tx-1", Step{Err: boom}, Step{Block: true})

	_, err := o.CheckStatus(context.Background(), "tx-1")
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	status, err := o.CheckStatus(ctx, "tx-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ledger.StatusPending, status)
}

func TestFlakyWriter_FailsThenDelegates(t *testing.T) {
	inner := NewMemoryWriter()
	w := NewFlakyWriter(inner, 2)
	ctx := context.Background()
	rec := record.Record{ID: "r-1", Kind: payload.KindJob, TxRef: "tx-1"}

	for i := 0; i < 2; i++ {
		_, err := w.Insert(ctx, rec)
		assert.ErrorIs(t, err, ErrInjected)
	}

	inserted, err := w.Insert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = w.Insert(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.Equal(t, 4, w.Inserts())
	assert.Equal(t, 1, inner.Len())

	found, err := w.FindByReference(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "r-1", found.ID)
}
