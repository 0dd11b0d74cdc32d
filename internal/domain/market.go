package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balances is the wallet state on the venue.
type Balances struct {
	Fiat   decimal.Decimal `json:"fiat"`
	Crypto decimal.Decimal `json:"crypto"`
}

// Of returns the balance of the currency offered first by the side.
func (b Balances) Of(side Side) decimal.Decimal {
	if side == SideFiat {
		return b.Fiat
	}
	return b.Crypto
}

// RateLimits is the offer endpoint rate limit published by the venue.
type RateLimits struct {
	WindowMs    int64
	MaxRequests int64
}

// MinInterval returns the smallest tick interval that keeps two offers per tick within the limit.
func (r RateLimits) MinInterval() time.Duration {
	if r.MaxRequests <= 0 {
		return 0
	}
	return time.Duration(2*r.WindowMs*int64(time.Millisecond)) / time.Duration(r.MaxRequests)
}

// Offer is a binding, time-limited price quote.
type Offer struct {
	ID   string
	Op   Operation
	Side Side
	// Price effective price in quote currency per unit of base.
	Price decimal.Decimal
	// BaseAmount crypto quantity moved if the offer is confirmed.
	BaseAmount decimal.Decimal
	// QuoteAmount fiat quantity moved if the offer is confirmed.
	QuoteAmount decimal.Decimal
}

// Confirmation is the venue's answer to a confirmed offer.
type Confirmation struct {
	OfferID     string
	BaseAmount  decimal.Decimal
	QuoteAmount decimal.Decimal
}

// ConfirmationFromOffer builds the confirmation an offer would produce; used when confirmations are skipped.
func ConfirmationFromOffer(o Offer) Confirmation {
	return Confirmation{OfferID: o.ID, BaseAmount: o.BaseAmount, QuoteAmount: o.QuoteAmount}
}

// Trade is an executed trade from the venue history.
type Trade struct {
	ID          string
	OfferID     string
	Op          Operation
	IsQuote     bool
	BaseAmount  decimal.Decimal
	QuoteAmount decimal.Decimal
	Price       decimal.Decimal
	Date        time.Time
}
