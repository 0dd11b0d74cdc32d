package report

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

type fakeSource struct {
	entries []domain.ProfitRecordEntry
	err     error
}

func (f *fakeSource) RecordsAfter(index uint64) ([]domain.ProfitRecordEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.ProfitRecordEntry
	for _, e := range f.entries {
		if e.Index > index {
			out = append(out, e)
		}
	}
	return out, nil
}

func entry(index uint64, currency, profit string, kind domain.ProfitKind, simulated bool) domain.ProfitRecordEntry {
	return domain.ProfitRecordEntry{
		Index: index,
		Record: domain.ProfitRecord{
			Sequence:  index,
			Timestamp: time.Date(2026, 1, 1, 0, 0, int(index), 0, time.UTC),
			Profit:    decimal.RequireFromString(profit),
			Currency:  currency,
			Kind:      kind,
			Simulated: simulated,
		},
	}
}

func TestReporter_CollectIsIncremental(t *testing.T) {
	source := &fakeSource{entries: []domain.ProfitRecordEntry{
		entry(1, "BTC", "0.0001", domain.ProfitKindSettled, false),
		entry(2, "BRL", "15", domain.ProfitKindSettled, false),
	}}
	r := New(zap.NewNop(), source)

	s, err := r.Collect()
	require.NoError(t, err)
	require.Equal(t, 2, s.Cycles)
	require.Equal(t, "0.0001", s.Totals["BTC"].String())
	require.Equal(t, "15", s.Totals["BRL"].String())

	source.entries = append(source.entries,
		entry(3, "BRL", "-2.5", domain.ProfitKindRecovered, false),
		entry(4, "BTC", "0.0002", domain.ProfitKindSettled, true),
	)

	s, err = r.Collect()
	require.NoError(t, err)
	require.Equal(t, 4, s.Cycles)
	require.Equal(t, 1, s.Simulated)
	require.Equal(t, "12.5", s.Totals["BRL"].String())
	require.Equal(t, "0.0003", s.Totals["BTC"].String())
	require.Equal(t, 3, s.ByKind[domain.ProfitKindSettled])
	require.Equal(t, 1, s.ByKind[domain.ProfitKindRecovered])
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 4, 0, time.UTC), s.Last)

	// returned summaries are copies
	s.Totals["BRL"] = decimal.Zero
	again, err := r.Collect()
	require.NoError(t, err)
	require.Equal(t, "12.5", again.Totals["BRL"].String())
}

func TestReporter_CollectError(t *testing.T) {
	r := New(zap.NewNop(), &fakeSource{err: errors.New("closed")})

	_, err := r.Collect()
	require.Error(t, err)
}

func TestReporter_Schedule(t *testing.T) {
	r := New(zap.NewNop(), &fakeSource{})

	require.NoError(t, r.Schedule("@hourly"))
	require.Error(t, r.Schedule("not a schedule"))
}

func TestReporter_StartReportsOnShutdown(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	source := &fakeSource{entries: []domain.ProfitRecordEntry{
		entry(1, "BTC", "0.0001", domain.ProfitKindSettled, false),
	}}
	r := New(zap.New(core), source)
	require.NoError(t, r.Schedule("@daily"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Start(ctx))

	reports := logs.FilterMessage("profit report").All()
	require.Len(t, reports, 1)
	fields := reports[0].ContextMap()
	require.EqualValues(t, 1, fields["cycles"])
	require.Equal(t, "0.0001", fields["profit_BTC"])
}
