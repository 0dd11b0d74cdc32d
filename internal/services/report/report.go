// Package report periodically summarises the profit ledger into the log.
package report

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

type recordSource interface {
	RecordsAfter(index uint64) ([]domain.ProfitRecordEntry, error)
}

// Summary is the running total of the ledger since process start.
type Summary struct {
	Cycles    int
	Simulated int
	// Totals profit per currency.
	Totals map[string]decimal.Decimal
	ByKind map[domain.ProfitKind]int
	Last   time.Time
}

func (s Summary) clone() Summary {
	out := Summary{
		Cycles:    s.Cycles,
		Simulated: s.Simulated,
		Last:      s.Last,
		Totals:    make(map[string]decimal.Decimal, len(s.Totals)),
		ByKind:    make(map[domain.ProfitKind]int, len(s.ByKind)),
	}
	for k, v := range s.Totals {
		out.Totals[k] = v
	}
	for k, v := range s.ByKind {
		out.ByKind[k] = v
	}
	return out
}

// Reporter folds new ledger records into a Summary on a cron schedule.
type Reporter struct {
	l      *zap.Logger
	source recordSource
	cron   *cron.Cron

	mu        sync.Mutex
	lastIndex uint64
	summary   Summary
}

func New(l *zap.Logger, source recordSource) *Reporter {
	return &Reporter{
		l:      l,
		source: source,
		cron:   cron.New(),
		summary: Summary{
			Totals: make(map[string]decimal.Decimal),
			ByKind: make(map[domain.ProfitKind]int),
		},
	}
}

// Schedule registers the report at spec (standard cron syntax or descriptors like "@hourly").
func (r *Reporter) Schedule(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.report); err != nil {
		return errors.Wrapf(err, "invalid report schedule %q", spec)
	}
	return nil
}

// Start runs the cron scheduler until ctx is cancelled, then waits for a running report to finish.
func (r *Reporter) Start(ctx context.Context) error {
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.report()
	return nil
}

// Collect reads records appended since the previous call and returns the updated summary.
func (r *Reporter) Collect() (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.source.RecordsAfter(r.lastIndex)
	if err != nil {
		return r.summary.clone(), errors.Wrap(err, "failed to read profit ledger")
	}

	for _, entry := range entries {
		rec := entry.Record
		r.summary.Cycles++
		if rec.Simulated {
			r.summary.Simulated++
		}
		r.summary.Totals[rec.Currency] = r.summary.Totals[rec.Currency].Add(rec.Profit)
		r.summary.ByKind[rec.Kind]++
		if rec.Timestamp.After(r.summary.Last) {
			r.summary.Last = rec.Timestamp
		}
		r.lastIndex = entry.Index
	}

	return r.summary.clone(), nil
}

func (r *Reporter) report() {
	s, err := r.Collect()
	if err != nil {
		r.l.Warn("profit report", zap.Error(err))
		return
	}

	fields := []zap.Field{
		zap.Int("cycles", s.Cycles),
		zap.Int("simulated", s.Simulated),
	}
	for currency, total := range s.Totals {
		fields = append(fields, zap.String("profit_"+currency, total.String()))
	}
	for kind, n := range s.ByKind {
		fields = append(fields, zap.Int(string(kind), n))
	}
	if !s.Last.IsZero() {
		fields = append(fields, zap.Time("last_cycle_at", s.Last))
	}

	r.l.Info("profit report", fields...)
}
