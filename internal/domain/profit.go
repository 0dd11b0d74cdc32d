package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const percentageMultiplier = 100

// ProfitKind tells how a cycle reached completion.
type ProfitKind string

const (
	ProfitKindSettled    ProfitKind = "settled"
	ProfitKindReconciled ProfitKind = "reconciled"
	ProfitKindRecovered  ProfitKind = "recovered"
	ProfitKindResolved   ProfitKind = "resolved"
)

// ProfitRecord is one ledger line per completed cycle.
type ProfitRecord struct {
	ID        string          `json:"id"`
	Sequence  uint64          `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	Side      string          `json:"side"`
	Profit    decimal.Decimal `json:"profit"`
	Currency  string          `json:"currency"`
	Kind      ProfitKind      `json:"kind"`
	Simulated bool            `json:"simulated,omitempty"`
}

// ProfitRecordEntry bundles a record with its ledger index.
type ProfitRecordEntry struct {
	Index  uint64
	Record ProfitRecord
}

// ProfitPercent returns (sell/buy - 1) * 100.
func ProfitPercent(buyPrice, sellPrice decimal.Decimal) decimal.Decimal {
	if buyPrice.IsZero() {
		return decimal.Zero
	}
	return sellPrice.Div(buyPrice).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(percentageMultiplier))
}

// RealizedProfit returns the profit of a completed cycle in the currency not used to size it.
// For a fiat cycle that is crypto bought minus crypto sold; for a crypto cycle, fiat received minus fiat spent.
func RealizedProfit(side Side, buy, sell Confirmation) decimal.Decimal {
	if side == SideFiat {
		return buy.BaseAmount.Sub(sell.BaseAmount)
	}
	return sell.QuoteAmount.Sub(buy.QuoteAmount)
}
