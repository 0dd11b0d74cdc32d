package arbitrage

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
	"github.com/vadiminshakov/arbiter/internal/metrics"
)

// execute confirms both legs of an accepted quote. Only a fatal inconsistency is returned as error;
// every other outcome is carried by the cycle result.
func (e *Engine) execute(ctx context.Context, c *cycle, q quote) (CycleResult, error) {
	// once the first leg is confirmed the cycle must reach a terminal phase
	ctx = context.WithoutCancel(ctx)

	if q.degraded {
		return e.resolveDegraded(ctx, c, q)
	}

	first, second := q.first(), q.second()

	if e.cfg.Simulation {
		c.l.Info("would execute arbitrage if simulation mode was not enabled",
			zap.String("profit_percent", q.percent.StringFixed(3)))
		return e.settle(ctx, c, q, domain.ConfirmationFromOffer(first), domain.ConfirmationFromOffer(second), domain.ProfitKindSettled), nil
	}

	startedAt := e.now()

	c.enter(PhaseConfirmingFirstLeg)
	firstLeg, err := e.gateway.ConfirmOffer(ctx, first.ID)
	if err != nil {
		c.l.Error("error on confirm offer, nothing executed", zap.String("offer", first.ID), zap.Error(err))
		return c.end(PhaseFirstLegFailed, errors.Wrap(err, "confirm first leg")), nil
	}

	c.enter(PhaseConfirmingSecondLeg)
	secondLeg, err := e.gateway.ConfirmOffer(ctx, second.ID)
	if err != nil {
		return e.recoverSecondLeg(ctx, c, q, firstLeg, err)
	}

	elapsed := e.now().Sub(startedAt)
	metrics.ConfirmLatency.Observe(elapsed.Seconds())
	c.l.Info("success",
		zap.String("profit_percent", q.percent.StringFixed(3)),
		zap.Int64("elapsed_ms", elapsed.Milliseconds()))

	return e.settle(ctx, c, q, firstLeg, secondLeg, domain.ProfitKindSettled), nil
}

// resolveDegraded confirms the live leg of a degraded side; the other leg was executed by an earlier cycle.
func (e *Engine) resolveDegraded(ctx context.Context, c *cycle, q quote) (CycleResult, error) {
	live, imputed := q.first(), q.second()
	imputedLeg := domain.ConfirmationFromOffer(imputed)

	if e.cfg.Simulation {
		c.l.Info("would resolve degraded side if simulation mode was not enabled",
			zap.String("profit_percent", q.percent.StringFixed(3)))
		return e.settle(ctx, c, q, domain.ConfirmationFromOffer(live), imputedLeg, domain.ProfitKindResolved), nil
	}

	c.enter(PhaseConfirmingFirstLeg)
	liveLeg, err := e.gateway.ConfirmOffer(ctx, live.ID)
	if err == nil {
		c.l.Info("degraded side resolved", zap.String("profit_percent", q.percent.StringFixed(3)))
		return e.settle(ctx, c, q, liveLeg, imputedLeg, domain.ProfitKindResolved), nil
	}

	c.l.Error("error on confirm offer while resolving degraded side", zap.String("offer", live.ID), zap.Error(err))

	trade, found, lookupErr := e.reconcile(ctx, c, q.side.FirstOp(), live)
	if lookupErr != nil {
		return e.fatal(ctx, c, errors.Wrap(lookupErr, "reconcile degraded leg"))
	}
	if !found {
		return e.fatal(ctx, c, errors.Wrap(err, "degraded leg not executed"))
	}

	return e.settle(ctx, c, q, confirmationFromTrade(trade, live), imputedLeg, domain.ProfitKindResolved), nil
}

// settle records a completed cycle. first and second are the legs in confirmation order.
func (e *Engine) settle(ctx context.Context, c *cycle, q quote, first, second domain.Confirmation, kind domain.ProfitKind) CycleResult {
	buy, sell := first, second
	if q.side.FirstOp() == domain.OpSell {
		buy, sell = second, first
	}

	profit := domain.RealizedProfit(q.side, buy, sell)
	currency := e.cfg.Pair.Currency(q.side.Other())
	c.result.Profit = profit

	record := domain.ProfitRecord{
		ID:        uuid.NewString(),
		Sequence:  c.result.Sequence,
		Timestamp: e.now().UTC(),
		Side:      q.side.String(),
		Profit:    profit,
		Currency:  currency,
		Kind:      kind,
		Simulated: e.cfg.Simulation,
	}
	if err := e.ledger.Append(record); err != nil {
		c.l.Error("failed to append profit record", zap.Error(err))
	}
	metrics.RealizedProfit.WithLabelValues(currency).Add(profit.InexactFloat64())

	e.recovery.RecordOutcome(profit)
	if q.degraded {
		e.recovery.Resolve(q.side)
	} else {
		e.alloc.Extend(q.side)
		e.sizer.RecordSuccess(q.side)
	}

	c.l.Info("cycle settled",
		zap.String("kind", string(kind)),
		zap.String("profit", profit.String()),
		zap.String("currency", currency),
		zap.Bool("had_loss", e.recovery.HadLoss))

	e.syncBalances(ctx, c)
	e.persistRecovery(c.l)

	phase := PhaseSettled
	if kind == domain.ProfitKindRecovered {
		phase = PhaseRecovered
	}
	return c.end(phase, nil)
}

// syncBalances refreshes balances after executed legs; failures are logged since the next tick retries.
func (e *Engine) syncBalances(ctx context.Context, c *cycle) {
	if err := e.refreshBalances(ctx); err != nil {
		c.l.Warn("failed to refresh balances", zap.Error(err))
	}
}

// fatal ends the cycle when an executed imbalance cannot be handled safely.
func (e *Engine) fatal(ctx context.Context, c *cycle, err error) (CycleResult, error) {
	c.l.Error("Fatal error. Unable to recover from incomplete arbitrage", zap.Error(err))
	_ = e.sleep(ctx, e.cfg.FatalPause)

	err = errors.Wrapf(ErrFatalInconsistency, "cycle %d: %v", c.result.Sequence, err)
	return c.end(PhaseFatal, err), err
}

func confirmationFromTrade(trade domain.Trade, offer domain.Offer) domain.Confirmation {
	conf := domain.Confirmation{
		OfferID:     offer.ID,
		BaseAmount:  trade.BaseAmount,
		QuoteAmount: trade.QuoteAmount,
	}
	if conf.BaseAmount.IsZero() && conf.QuoteAmount.IsZero() {
		return domain.ConfirmationFromOffer(offer)
	}
	return conf
}

// excessOf returns the currency amount the executed first leg left unmatched and the amount it spent.
func excessOf(side domain.Side, firstLeg domain.Confirmation) (excess, spent decimal.Decimal) {
	if side == domain.SideFiat {
		return firstLeg.BaseAmount, firstLeg.QuoteAmount
	}
	return firstLeg.QuoteAmount, firstLeg.BaseAmount
}
