package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/paywatch/internal/pending"
)

func TestArchiveAbandoned(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	op := createTestOperation(t, "addr_test1alice", "tx-1", 0)
	at := testEpoch.Add(2 * time.Minute)
	require.NoError(t, s.ArchiveAbandoned(ctx, op, at))

	got, found, err := s.GetAbandoned(ctx, "tx-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, op.ID, got.Operation.ID)
	assert.Equal(t, pending.StateAbandoned, got.Operation.State)
	assert.Equal(t, testJob(), got.Operation.Payload)
	assert.Equal(t, at, got.AbandonedAt)
	assert.Empty(t, got.Resolution)
	assert.Nil(t, got.ResolvedAt)
}

func TestArchiveAbandoned_KeepsFirstRow(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	op := createTestOperation(t, "addr_test1alice", "tx-1", 0)
	first := testEpoch.Add(2 * time.Minute)
	require.NoError(t, s.ArchiveAbandoned(ctx, op, first))
	require.NoError(t, s.ArchiveAbandoned(ctx, op, first.Add(time.Hour)))

	got, _, err := s.GetAbandoned(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, first, got.AbandonedAt)
}

func TestGetAbandoned_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, found, err := s.GetAbandoned(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolveAbandoned(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ArchiveAbandoned(ctx, createTestOperation(t, "addr_a", "tx-a", 0), testEpoch))
	require.NoError(t, s.ArchiveAbandoned(ctx, createTestOperation(t, "addr_b", "tx-b", 0), testEpoch.Add(time.Second)))

	resolvedAt := testEpoch.Add(time.Hour)
	ok, err := s.ResolveAbandoned(ctx, "tx-a", "committed", resolvedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ResolveAbandoned(ctx, "tx-a", "failed", resolvedAt)
	require.NoError(t, err)
	assert.False(t, ok, "already resolved")

	open, err := s.ListAbandoned(ctx, false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "tx-b", open[0].Operation.TxRef)

	all, err := s.ListAbandoned(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "committed", all[0].Resolution)
	require.NotNil(t, all[0].ResolvedAt)
	assert.Equal(t, resolvedAt, *all[0].ResolvedAt)
}

func TestResolveAbandoned_RequiresResolution(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ResolveAbandoned(context.Background(), "tx-a", "", testEpoch)
	assert.Error(t, err)
}
