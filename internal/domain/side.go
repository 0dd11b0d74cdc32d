package domain

// Side is the cycle mode: which currency is offered first during a tick.
type Side int

const (
	// SideFiat sizes the trade in fiat: buy crypto first, then sell it back.
	SideFiat Side = iota
	// SideCrypto sizes the trade in crypto: sell crypto first, then buy it back.
	SideCrypto
)

// String returns the string representation of the side.
func (s Side) String() string {
	switch s {
	case SideFiat:
		return "fiat"
	case SideCrypto:
		return "crypto"
	default:
		return "unknown"
	}
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideFiat {
		return SideCrypto
	}
	return SideFiat
}

// IsQuote reports whether the trade amount of this side is denominated in the quote currency.
func (s Side) IsQuote() bool {
	return s == SideFiat
}

// FirstOp returns the operation confirmed first on this side.
func (s Side) FirstOp() Operation {
	if s == SideFiat {
		return OpBuy
	}
	return OpSell
}

// SecondOp returns the operation confirmed second on this side.
func (s Side) SecondOp() Operation {
	return s.FirstOp().Opposite()
}

// Operation is the direction of a single leg.
type Operation string

const (
	OpBuy  Operation = "buy"
	OpSell Operation = "sell"
)

// Opposite returns the reverse operation.
func (o Operation) Opposite() Operation {
	if o == OpBuy {
		return OpSell
	}
	return OpBuy
}
