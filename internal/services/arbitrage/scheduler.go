package arbitrage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
	"github.com/vadiminshakov/arbiter/internal/metrics"
)

// Run drives ticks until ctx is cancelled or a tick hits a fatal inconsistency.
// The next tick is armed only after the current one returned, max(0, interval-elapsed) later.
func (e *Engine) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	e.l.Info("starting trade loop", zap.String("pair", e.cfg.Pair.String()), zap.Duration("interval", e.interval))

	for {
		select {
		case <-ctx.Done():
			e.l.Info("context done, stopping trade loop")
			return ctx.Err()
		case <-timer.C:
		}

		startedAt := e.now()
		if _, err := e.Tick(ctx); err != nil {
			return err
		}

		wait := e.interval - e.now().Sub(startedAt)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// Tick runs exactly one trade cycle. The error is non-nil only for a fatal inconsistency;
// every other outcome is described by the result.
func (e *Engine) Tick(ctx context.Context) (CycleResult, error) {
	startedAt := e.now()
	e.sizer.Tick()

	if e.recovery.BothDegraded() {
		e.clearDeadlock(ctx)
	}
	e.selectMode()

	e.seq++
	side := e.mode
	c := newCycle(e.l, e.seq, side, startedAt)

	result, err := e.runCycle(ctx, c)
	metrics.Cycles.WithLabelValues(side.String(), string(result.Phase)).Inc()
	if err != nil {
		e.publish()
		return result, err
	}

	e.advanceMode()
	e.publish()

	c.l.Debug("cycle finished",
		zap.String("phase", string(result.Phase)),
		zap.Int64("elapsed_ms", e.now().Sub(startedAt).Milliseconds()),
		zap.String("next_mode", e.mode.String()))

	return result, nil
}

func (e *Engine) runCycle(ctx context.Context, c *cycle) (CycleResult, error) {
	q, err := e.evaluate(ctx, c, c.result.Side)
	switch {
	case errors.Is(err, errBelowThreshold):
		c.l.Debug("cycle skipped", zap.Error(err))
		return c.end(PhaseSkipped, nil), nil
	case err != nil:
		c.l.Error("error on get offer", zap.Error(err))
		return c.end(PhaseOfferFailed, err), nil
	}

	return e.execute(ctx, c, q)
}

// selectMode switches away from a side whose balance is too low to trade, unless that side
// is degraded and only needs its stored amount.
func (e *Engine) selectMode() {
	if e.recovery.IsDegraded(e.mode) || !e.belowMinimum(e.mode) {
		return
	}

	next := e.mode.Other()
	e.l.Debug("balance below minimum, switching side",
		zap.String("from", e.mode.String()),
		zap.String("to", next.String()))
	e.mode = next
}

// advanceMode picks the side of the next tick: degraded recovery flips every tick,
// otherwise a side keeps running until its allocated ticks expire.
func (e *Engine) advanceMode() {
	if e.recovery.AnyDegraded() {
		e.mode = e.mode.Other()
		return
	}
	if e.alloc.Consume(e.mode) {
		e.mode = e.mode.Other()
	}
}

// clearDeadlock drops both degraded states: each side waits on the other and neither can resolve.
func (e *Engine) clearDeadlock(ctx context.Context) {
	e.l.Warn("both sides degraded, clearing degraded state and resyncing balances",
		zap.String("fiat_stored_amount", e.recovery.Fiat.StoredAmount.String()),
		zap.String("crypto_stored_amount", e.recovery.Crypto.StoredAmount.String()))

	e.recovery.ClearAll()
	if err := e.refreshBalances(ctx); err != nil {
		e.l.Warn("failed to refresh balances", zap.Error(err))
	}
	e.persistRecovery(e.l)
	e.mode = domain.SideFiat
}
