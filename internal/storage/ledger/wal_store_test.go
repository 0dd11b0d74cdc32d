package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/arbiter/internal/domain"
)

func TestWALStore_AppendAndRead(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)
	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Append(domain.ProfitRecord{
		Sequence:  1,
		Timestamp: now,
		Side:      domain.SideFiat.String(),
		Profit:    decimal.RequireFromString("0.0002"),
		Currency:  "BTC",
		Kind:      domain.ProfitKindSettled,
	}))
	require.NoError(t, store.Append(domain.ProfitRecord{
		Sequence:  3,
		Timestamp: now.Add(time.Minute),
		Side:      domain.SideCrypto.String(),
		Profit:    decimal.NewFromInt(-4),
		Currency:  "BRL",
		Kind:      domain.ProfitKindRecovered,
	}))

	records, err := store.RecordsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(1), records[0].Record.Sequence)
	require.NotEmpty(t, records[0].Record.ID)
	require.True(t, records[1].Record.Profit.Equal(decimal.NewFromInt(-4)))
	require.Equal(t, domain.ProfitKindRecovered, records[1].Record.Kind)

	tail, err := store.RecordsAfter(records[0].Index)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, uint64(3), tail[0].Record.Sequence)

	require.Equal(t, uint64(3), store.LastSequence())
}

func TestWALStore_RequiresSide(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.Error(t, store.Append(domain.ProfitRecord{Sequence: 1}))
}

func TestWALStore_LastSequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(domain.ProfitRecord{Sequence: 7, Side: "fiat", Profit: decimal.NewFromInt(1)}))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, uint64(7), reopened.LastSequence())
}
