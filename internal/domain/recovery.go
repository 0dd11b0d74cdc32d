package domain

import "github.com/shopspring/decimal"

// DegradedState is kept per side after a cycle executed only one leg.
// While active, the executed leg is imputed from the stored values instead of re-quoted.
type DegradedState struct {
	Active bool
	// StoredPrice price of the executed leg.
	StoredPrice decimal.Decimal
	// StoredAmount amount of the excess currency, offered by the resolving cycle.
	StoredAmount decimal.Decimal
	// OtherLegAmount amount spent by the executed leg.
	OtherLegAmount decimal.Decimal
}

// RecoveryState is the engine's degraded/loss bookkeeping for both sides.
type RecoveryState struct {
	Fiat    DegradedState
	Crypto  DegradedState
	HadLoss bool
}

// Degraded returns the degraded state of a side.
func (r RecoveryState) Degraded(side Side) DegradedState {
	if side == SideFiat {
		return r.Fiat
	}
	return r.Crypto
}

// IsDegraded reports whether the side is degraded.
func (r RecoveryState) IsDegraded(side Side) bool {
	return r.Degraded(side).Active
}

// AnyDegraded reports whether at least one side is degraded.
func (r RecoveryState) AnyDegraded() bool {
	return r.Fiat.Active || r.Crypto.Active
}

// BothDegraded reports the deadlock where both sides wait on each other.
func (r RecoveryState) BothDegraded() bool {
	return r.Fiat.Active && r.Crypto.Active
}

// Clean reports whether there is nothing left worth persisting.
func (r RecoveryState) Clean() bool {
	return !r.AnyDegraded() && !r.HadLoss
}

// Degrade records the executed leg of a lost cycle on the side that will resolve it.
// A side that is already degraded accumulates both amounts and keeps the average price.
func (r *RecoveryState) Degrade(side Side, price, amount, otherLegAmount decimal.Decimal) {
	state := DegradedState{
		Active:         true,
		StoredPrice:    price,
		StoredAmount:   amount,
		OtherLegAmount: otherLegAmount,
	}
	if prev := r.Degraded(side); prev.Active {
		state.StoredAmount = prev.StoredAmount.Add(amount)
		state.OtherLegAmount = prev.OtherLegAmount.Add(otherLegAmount)
		state.StoredPrice = averagePrice(side, state.StoredAmount, state.OtherLegAmount, price)
	}
	if side == SideFiat {
		r.Fiat = state
		return
	}
	r.Crypto = state
}

// Resolve clears the degraded state of a side.
func (r *RecoveryState) Resolve(side Side) {
	r.Restore(side, DegradedState{})
}

// Restore puts back a degraded state captured earlier with Degraded.
func (r *RecoveryState) Restore(side Side, state DegradedState) {
	if side == SideFiat {
		r.Fiat = state
		return
	}
	r.Crypto = state
}

// ClearAll drops both degraded states; the loss flag is kept.
func (r *RecoveryState) ClearAll() {
	r.Fiat = DegradedState{}
	r.Crypto = DegradedState{}
}

// RecordOutcome updates the loss flag from the sign of a realised profit.
func (r *RecoveryState) RecordOutcome(profit decimal.Decimal) {
	r.HadLoss = profit.IsNegative()
}

// averagePrice returns fiat per crypto of the accumulated legs. The fiat side stores fiat and
// spent crypto, the crypto side stores crypto and spent fiat.
func averagePrice(side Side, stored, other, fallback decimal.Decimal) decimal.Decimal {
	fiat, crypto := stored, other
	if side == SideCrypto {
		fiat, crypto = other, stored
	}
	if crypto.IsZero() {
		return fallback
	}
	return fiat.Div(crypto)
}
