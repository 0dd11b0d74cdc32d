// Package allocator decides how many consecutive ticks each side gets from relative balance value.
package allocator

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

// TargetTicks is the approximate sum of both shares before GCD reduction.
const TargetTicks = 10

// Allocator keeps the remaining tick counters of both sides.
// When disabled both counters are fixed at 1, which is strict alternation.
type Allocator struct {
	l         *zap.Logger
	enabled   bool
	share     [2]int
	remaining [2]int
	extended  [2]bool
}

// New creates an allocator starting at 1:1.
func New(l *zap.Logger, enabled bool) *Allocator {
	return &Allocator{
		l:         l,
		enabled:   enabled,
		share:     [2]int{1, 1},
		remaining: [2]int{1, 1},
	}
}

// Enabled reports whether proportional cycling is on.
func (a *Allocator) Enabled() bool {
	return a.enabled
}

// Remaining returns the ticks left for a side.
func (a *Allocator) Remaining(side domain.Side) int {
	return a.remaining[side]
}

// Allocation returns the current counters.
func (a *Allocator) Allocation() (fiatTicks, cryptoTicks int) {
	return a.remaining[domain.SideFiat], a.remaining[domain.SideCrypto]
}

// Observe feeds a fresh non-degraded sell price; counters are recomputed when either reached zero.
func (a *Allocator) Observe(balances domain.Balances, sellPrice decimal.Decimal) bool {
	if !a.enabled {
		return false
	}
	if a.remaining[domain.SideFiat] > 0 && a.remaining[domain.SideCrypto] > 0 {
		return false
	}

	fiat, crypto := Allocate(balances, sellPrice, TargetTicks)
	a.share = [2]int{fiat, crypto}
	a.remaining = [2]int{fiat, crypto}
	a.extended = [2]bool{}

	a.l.Debug("cycle allocation recomputed",
		zap.Int("fiat_ticks", fiat),
		zap.Int("crypto_ticks", crypto),
		zap.String("sell_price", sellPrice.String()))

	return true
}

// Consume spends one tick of a side and reports whether the side's priority expired.
func (a *Allocator) Consume(side domain.Side) bool {
	if !a.enabled {
		return true
	}
	if a.remaining[side] > 0 {
		a.remaining[side]--
	}
	return a.remaining[side] == 0
}

// Extend grants a side one extra tick after a successful cycle, once per allocation
// and never above the side's computed share.
func (a *Allocator) Extend(side domain.Side) {
	if !a.enabled || a.extended[side] {
		return
	}
	if a.remaining[side] < a.share[side] {
		a.remaining[side]++
		a.extended[side] = true
	}
}

// Allocate converts balances to a common unit with price and returns the lowest-terms tick ratio,
// each side at least 1.
func Allocate(balances domain.Balances, price decimal.Decimal, target int) (fiatTicks, cryptoTicks int) {
	fiatValue := decimal.Max(balances.Fiat, decimal.Zero)
	cryptoValue := decimal.Max(balances.Crypto.Mul(price), decimal.Zero)
	total := fiatValue.Add(cryptoValue)
	if !total.IsPositive() || target < 2 {
		return 1, 1
	}

	scale := decimal.NewFromInt(int64(target))
	fiatTicks = int(fiatValue.Mul(scale).Div(total).Round(0).IntPart())
	cryptoTicks = int(cryptoValue.Mul(scale).Div(total).Round(0).IntPart())
	fiatTicks = max(fiatTicks, 1)
	cryptoTicks = max(cryptoTicks, 1)

	d := gcd(fiatTicks, cryptoTicks)
	return fiatTicks / d, cryptoTicks / d
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
