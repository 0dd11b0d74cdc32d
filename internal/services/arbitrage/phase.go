package arbitrage

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

// Phase is a state of the trade-cycle state machine.
type Phase string

const (
	PhaseEvaluated           Phase = "evaluated"
	PhaseConfirmingFirstLeg  Phase = "confirming_first_leg"
	PhaseConfirmingSecondLeg Phase = "confirming_second_leg"
	PhaseSettled             Phase = "settled"
	PhasePartialFailure      Phase = "partial_failure"
	PhaseRecovering          Phase = "recovering"
	PhaseRecovered           Phase = "recovered"
	PhaseDegraded            Phase = "degraded"
	PhaseFatal               Phase = "fatal"

	// PhaseSkipped profit below threshold or nothing to trade.
	PhaseSkipped Phase = "skipped"
	// PhaseOfferFailed an offer could not be obtained.
	PhaseOfferFailed Phase = "offer_failed"
	// PhaseFirstLegFailed the first confirmation failed; nothing executed.
	PhaseFirstLegFailed Phase = "first_leg_failed"
	// PhaseUnresolved the missing leg was left for manual handling.
	PhaseUnresolved Phase = "unresolved"
)

// CycleResult describes how one tick ended.
type CycleResult struct {
	Sequence      uint64
	Side          domain.Side
	Phase         Phase
	Amount        decimal.Decimal
	ProfitPercent decimal.Decimal
	Profit        decimal.Decimal
	Err           error
}

type cycle struct {
	l       *zap.Logger
	result  CycleResult
	started time.Time
}

func newCycle(l *zap.Logger, seq uint64, side domain.Side, started time.Time) *cycle {
	return &cycle{
		l: l.With(zap.Uint64("cycle", seq), zap.String("side", side.String())),
		result: CycleResult{
			Sequence: seq,
			Side:     side,
			Phase:    PhaseEvaluated,
		},
		started: started,
	}
}

func (c *cycle) enter(phase Phase) {
	c.l.Debug("cycle phase", zap.String("from", string(c.result.Phase)), zap.String("to", string(phase)))
	c.result.Phase = phase
}

func (c *cycle) end(phase Phase, err error) CycleResult {
	c.enter(phase)
	c.result.Err = err
	return c.result
}
