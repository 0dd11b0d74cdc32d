package arbitrage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
	"github.com/vadiminshakov/arbiter/internal/metrics"
	"github.com/vadiminshakov/arbiter/pkg/retrier"
)

// recoverSecondLeg handles a cycle whose first leg was confirmed and whose second confirmation failed.
func (e *Engine) recoverSecondLeg(ctx context.Context, c *cycle, q quote, firstLeg domain.Confirmation, confirmErr error) (CycleResult, error) {
	c.enter(PhasePartialFailure)
	c.l.Error("error on confirm offer, only the first leg may have been executed",
		zap.String("offer", q.second().ID),
		zap.Error(confirmErr))

	c.enter(PhaseRecovering)

	// a crash or fatal stop from here on must find the imbalance on disk
	release := e.holdImbalance(c, q, firstLeg)

	// the venue's error is not ground truth, the leg may have executed anyway
	trade, found, err := e.reconcile(ctx, c, q.side.SecondOp(), q.second())
	if err != nil {
		return e.fatal(ctx, c, errors.Wrap(err, "reconcile second leg"))
	}
	if found {
		c.l.Info("the second leg was executed despite the error")
		release()
		return e.settle(ctx, c, q, firstLeg, confirmationFromTrade(trade, q.second()), domain.ProfitKindReconciled), nil
	}

	partial := errors.Wrapf(ErrPartialExecution, "%s leg not executed: %v", q.side.SecondOp(), confirmErr)

	if !e.cfg.ExecuteMissedSecondLeg {
		c.l.Warn("only the first leg of the arbitrage was executed and execute_missed_second_leg is off, leaving it for manual handling")
		release()
		e.syncBalances(ctx, c)
		return c.end(PhaseUnresolved, partial), nil
	}

	c.l.Warn("only the first leg of the arbitrage was executed, trying to execute it at a possible loss",
		zap.Int("attempts", e.recoverer.Attempts()))

	secondLeg, percent, err := e.retrySecondLeg(ctx, c, q)
	switch {
	case err == nil:
		c.result.ProfitPercent = percent
		c.l.Info("the second leg was executed and the balance was normalized",
			zap.String("profit_percent", percent.StringFixed(3)))
		release()
		return e.settle(ctx, c, q, firstLeg, secondLeg, domain.ProfitKindRecovered), nil
	case errors.Is(err, ErrFatalInconsistency):
		return e.fatal(ctx, c, err)
	}

	return e.degrade(ctx, c, q, err)
}

// retrySecondLeg re-quotes the missing leg until a quote passes the relaxed threshold and is confirmed.
func (e *Engine) retrySecondLeg(ctx context.Context, c *cycle, q quote) (domain.Confirmation, decimal.Decimal, error) {
	var (
		secondLeg domain.Confirmation
		percent   decimal.Decimal
	)
	op := q.side.SecondOp()
	threshold := e.relaxedThreshold()
	attempts := e.recoverer.Attempts()

	err := e.recoverer.DoAttempt(ctx, func(ctx context.Context, attempt int) error {
		metrics.RecoveryAttempts.Inc()
		l := c.l.With(zap.Int("attempt", attempt))

		offer, err := e.gateway.RequestOffer(ctx, q.amount, q.side, op)
		if err != nil {
			l.Warn("failed to re-quote missing leg", zap.Error(err))
			return err
		}

		buyPrice, sellPrice := q.buy.Price, offer.Price
		if op == domain.OpBuy {
			buyPrice, sellPrice = offer.Price, q.sell.Price
		}
		percent = domain.ProfitPercent(buyPrice, sellPrice)

		final := attempt == attempts && e.cfg.ForceFinalRecoveryAttempt
		if percent.LessThan(threshold) && !final {
			l.Debug("missing leg quote below threshold",
				zap.String("profit_percent", percent.StringFixed(3)),
				zap.String("threshold", threshold.String()))
			return errors.Wrapf(errBelowThreshold, "profit %s%%", percent.StringFixed(3))
		}
		if final {
			l.Warn("final attempt, accepting missing leg quote unconditionally",
				zap.String("profit_percent", percent.StringFixed(3)))
		}

		conf, err := e.gateway.ConfirmOffer(ctx, offer.ID)
		if err == nil {
			secondLeg = conf
			return nil
		}
		l.Warn("failed to confirm missing leg", zap.String("offer", offer.ID), zap.Error(err))

		trade, found, lookupErr := e.reconcile(ctx, c, op, offer)
		if lookupErr != nil {
			return retrier.Permanent(errors.Wrapf(ErrFatalInconsistency, "reconcile missing leg: %v", lookupErr))
		}
		if found {
			secondLeg = confirmationFromTrade(trade, offer)
			return nil
		}
		return err
	})

	return secondLeg, percent, err
}

// holdImbalance records the unmatched first leg on the side whose cycle will resolve it and
// persists it. The returned func puts back the side's previous state once the imbalance is gone.
func (e *Engine) holdImbalance(c *cycle, q quote, firstLeg domain.Confirmation) (release func()) {
	excess, spent := excessOf(q.side, firstLeg)
	resolver := q.side.Other()
	prev := e.recovery.Degraded(resolver)

	e.recovery.Degrade(resolver, q.first().Price, excess, spent)
	e.persistRecovery(c.l)

	return func() {
		e.recovery.Restore(resolver, prev)
		e.persistRecovery(c.l)
	}
}

// degrade keeps the held imbalance: the resolver side trades against the stored leg from now on.
func (e *Engine) degrade(ctx context.Context, c *cycle, q quote, cause error) (CycleResult, error) {
	resolver := q.side.Other()
	state := e.recovery.Degraded(resolver)

	c.l.Error("failed trying to execute second leg, switching to single currency mode",
		zap.String("degraded_side", resolver.String()),
		zap.String("stored_price", state.StoredPrice.String()),
		zap.String("stored_amount", state.StoredAmount.String()),
		zap.String("other_leg_amount", state.OtherLegAmount.String()),
		zap.Error(cause))

	e.syncBalances(ctx, c)

	return c.end(PhaseDegraded, errors.Wrapf(ErrRecoveryExhausted, "%d attempts: %v", e.recoverer.Attempts(), cause)), nil
}

// reconcile looks the offer up in the trade history of op.
// An error means the history could not be read at all.
func (e *Engine) reconcile(ctx context.Context, c *cycle, op domain.Operation, offer domain.Offer) (domain.Trade, bool, error) {
	trades, err := retrier.DoWithData(e.transient, ctx, func(ctx context.Context) ([]domain.Trade, error) {
		return e.gateway.ListTrades(ctx, op)
	})
	if err != nil {
		return domain.Trade{}, false, errors.Wrapf(err, "list %s trades", op)
	}

	ambiguous := false
	for _, trade := range trades {
		if offer.ID != "" && trade.OfferID == offer.ID {
			return trade, true, nil
		}
		if trade.OfferID == "" && !trade.Date.Before(c.started) && sameAmount(c.result.Side, offer, trade) {
			ambiguous = true
		}
	}

	if ambiguous {
		metrics.ReconciliationAmbiguous.Inc()
		c.l.Warn("trade history can neither confirm nor deny the leg, treating it as not executed",
			zap.String("offer", offer.ID),
			zap.Error(ErrReconciliationAmbiguous))
	}

	return domain.Trade{}, false, nil
}

func sameAmount(side domain.Side, offer domain.Offer, trade domain.Trade) bool {
	if side.IsQuote() {
		return offer.QuoteAmount.Equal(trade.QuoteAmount)
	}
	return offer.BaseAmount.Equal(trade.BaseAmount)
}
