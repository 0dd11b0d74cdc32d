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

// quote is the evaluated pair of offers for one cycle.
type quote struct {
	side     domain.Side
	amount   decimal.Decimal
	buy      domain.Offer
	sell     domain.Offer
	percent  decimal.Decimal
	degraded bool
}

// first returns the offer confirmed first on the quote's side.
func (q quote) first() domain.Offer {
	if q.side.FirstOp() == domain.OpBuy {
		return q.buy
	}
	return q.sell
}

// second returns the offer confirmed second on the quote's side.
func (q quote) second() domain.Offer {
	if q.side.SecondOp() == domain.OpBuy {
		return q.buy
	}
	return q.sell
}

// Threshold returns the minimum profit percent a cycle must reach.
// Degraded cycles tolerate a loss of up to minProfit, or none once a loss has been realised.
func Threshold(minProfit decimal.Decimal, degraded, hadLoss bool) decimal.Decimal {
	if !degraded {
		return minProfit
	}
	if hadLoss {
		return decimal.Zero
	}
	return minProfit.Neg()
}

// relaxedThreshold is the bar for re-quoted missing legs.
func (e *Engine) relaxedThreshold() decimal.Decimal {
	return Threshold(e.cfg.MinProfitPercent, true, e.recovery.HadLoss)
}

// evaluate builds the quote of the side. On a degraded side only the live leg is requested
// and the executed leg is imputed from the stored state.
func (e *Engine) evaluate(ctx context.Context, c *cycle, side domain.Side) (quote, error) {
	if state := e.recovery.Degraded(side); state.Active {
		return e.evaluateDegraded(ctx, c, side, state)
	}

	q := quote{side: side, amount: e.sizer.Amount(side, e.available(side))}
	c.result.Amount = q.amount
	if !q.amount.IsPositive() {
		return q, errors.Wrapf(errBelowThreshold, "nothing to trade on %s side", side)
	}

	var err error
	if q.buy, err = e.requestOffer(ctx, q.amount, side, domain.OpBuy); err != nil {
		return q, err
	}
	if q.sell, err = e.requestOffer(ctx, q.amount, side, domain.OpSell); err != nil {
		return q, err
	}

	if e.alloc.Observe(e.balances, q.sell.Price) {
		fiatTicks, cryptoTicks := e.alloc.Allocation()
		c.l.Info("cycle allocation",
			zap.Int("fiat_ticks", fiatTicks),
			zap.Int("crypto_ticks", cryptoTicks))
	}

	q.percent = domain.ProfitPercent(q.buy.Price, q.sell.Price)
	return q, e.accept(c, q)
}

func (e *Engine) evaluateDegraded(ctx context.Context, c *cycle, side domain.Side, state domain.DegradedState) (quote, error) {
	q := quote{side: side, amount: state.StoredAmount, degraded: true}
	c.result.Amount = q.amount

	live, err := e.requestOffer(ctx, q.amount, side, side.FirstOp())
	if err != nil {
		return q, err
	}

	imputed := domain.Offer{
		Op:    side.SecondOp(),
		Side:  side,
		Price: state.StoredPrice,
	}
	if side == domain.SideFiat {
		imputed.BaseAmount, imputed.QuoteAmount = state.OtherLegAmount, state.StoredAmount
	} else {
		imputed.BaseAmount, imputed.QuoteAmount = state.StoredAmount, state.OtherLegAmount
	}

	if live.Op == domain.OpBuy {
		q.buy, q.sell = live, imputed
	} else {
		q.buy, q.sell = imputed, live
	}

	q.percent = domain.ProfitPercent(q.buy.Price, q.sell.Price)
	return q, e.accept(c, q)
}

func (e *Engine) requestOffer(ctx context.Context, amount decimal.Decimal, side domain.Side, op domain.Operation) (domain.Offer, error) {
	offer, err := retrier.DoWithData(e.transient, ctx, func(ctx context.Context) (domain.Offer, error) {
		return e.gateway.RequestOffer(ctx, amount, side, op)
	})
	if err != nil {
		return domain.Offer{}, errors.Wrapf(ErrGetOffer, "%s offer: %v", op, err)
	}
	return offer, nil
}

// accept compares the quote with the threshold of its mode; it has no side effects besides logging.
func (e *Engine) accept(c *cycle, q quote) error {
	threshold := Threshold(e.cfg.MinProfitPercent, q.degraded, e.recovery.HadLoss)
	c.result.ProfitPercent = q.percent
	metrics.ProfitPercent.WithLabelValues(q.side.String()).Set(q.percent.InexactFloat64())

	c.l.Debug("calculated profit",
		zap.String("amount", q.amount.String()),
		zap.String("buy_price", q.buy.Price.String()),
		zap.String("sell_price", q.sell.Price.String()),
		zap.String("profit_percent", q.percent.StringFixed(3)),
		zap.String("threshold", threshold.String()),
		zap.Bool("degraded", q.degraded))

	if q.percent.LessThan(threshold) {
		return errors.Wrapf(errBelowThreshold, "profit %s%% < %s%%", q.percent.StringFixed(3), threshold.String())
	}
	return nil
}
