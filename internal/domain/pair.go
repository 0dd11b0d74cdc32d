// Package domain defines core data structures used throughout the arbitrage bot.
package domain

import "fmt"

// Pair cryptocurrency trading pair.
type Pair struct {
	// From base (crypto) currency symbol.
	From string
	// To quote (fiat) currency symbol.
	To string
}

// String returns the string representation.
func (p *Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Currency returns the symbol of the currency offered first by the given side.
func (p *Pair) Currency(side Side) string {
	if side == SideFiat {
		return p.To
	}
	return p.From
}
