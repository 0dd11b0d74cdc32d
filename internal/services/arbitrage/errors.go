package arbitrage

import "github.com/pkg/errors"

var (
	// ErrGetOffer is a failure before any confirmation; the cycle ends with no state change.
	ErrGetOffer = errors.New("get offer failed")
	// ErrPartialExecution means the first leg was confirmed and the second was not.
	ErrPartialExecution = errors.New("partial execution")
	// ErrReconciliationAmbiguous means trade history could neither confirm nor deny the missing leg.
	ErrReconciliationAmbiguous = errors.New("reconciliation ambiguous")
	// ErrRecoveryExhausted means every recovery attempt failed and the side was degraded.
	ErrRecoveryExhausted = errors.New("recovery attempts exhausted")
	// ErrFatalInconsistency is returned when an imbalance cannot be handled safely; the process must stop.
	ErrFatalInconsistency = errors.New("fatal inconsistency")

	errBelowThreshold = errors.New("profit below threshold")
)
