// Package sizing tunes the trade amount per side from recent success history.
package sizing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

const DefaultIdleWindow = 30 * time.Minute

var (
	growthFactor = decimal.NewFromInt(2)
	shrinkFactor = decimal.NewFromFloat(math.Sqrt2)
	minFactor    = decimal.NewFromInt(1)
)

// Config configures the controller.
type Config struct {
	Enabled    bool
	BaseFiat   decimal.Decimal
	BaseCrypto decimal.Decimal
	IdleWindow time.Duration
}

// Controller keeps a multiplicative factor over a base amount for each side.
type Controller struct {
	l          *zap.Logger
	enabled    bool
	base       [2]decimal.Decimal
	factor     [2]decimal.Decimal
	idleSince  [2]time.Time
	idleWindow time.Duration
	now        func() time.Time
}

// NewController creates a controller; now may be nil.
func NewController(l *zap.Logger, cfg Config, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	if cfg.IdleWindow <= 0 {
		cfg.IdleWindow = DefaultIdleWindow
	}
	started := now()

	return &Controller{
		l:          l,
		enabled:    cfg.Enabled,
		base:       [2]decimal.Decimal{domain.SideFiat: cfg.BaseFiat, domain.SideCrypto: cfg.BaseCrypto},
		factor:     [2]decimal.Decimal{minFactor, minFactor},
		idleSince:  [2]time.Time{started, started},
		idleWindow: cfg.IdleWindow,
		now:        now,
	}
}

// Enabled reports whether adaptive sizing is on.
func (c *Controller) Enabled() bool {
	return c.enabled
}

// Factor returns the current factor of a side.
func (c *Controller) Factor(side domain.Side) decimal.Decimal {
	return c.factor[side]
}

// Amount returns min(available, factor*base). Without sizing or base amount the whole available balance is used.
func (c *Controller) Amount(side domain.Side, available decimal.Decimal) decimal.Decimal {
	if !c.enabled || !c.base[side].IsPositive() {
		return available
	}

	return decimal.Min(available, c.factor[side].Mul(c.base[side]))
}

// RecordSuccess grows the side's factor after a successful non-degraded cycle.
// The balance cap is applied by Amount only, the factor itself keeps growing.
func (c *Controller) RecordSuccess(side domain.Side) {
	c.idleSince[side] = c.now()
	if !c.enabled || !c.base[side].IsPositive() {
		return
	}

	c.factor[side] = c.factor[side].Mul(growthFactor)
	c.l.Debug("trade size factor grown",
		zap.String("side", side.String()),
		zap.String("factor", c.factor[side].String()))
}

// Tick shrinks the factor of any side idle for longer than the idle window.
func (c *Controller) Tick() {
	if !c.enabled {
		return
	}

	now := c.now()
	for _, side := range []domain.Side{domain.SideFiat, domain.SideCrypto} {
		if now.Sub(c.idleSince[side]) < c.idleWindow {
			continue
		}
		c.idleSince[side] = now
		if c.factor[side].LessThanOrEqual(minFactor) {
			continue
		}

		c.factor[side] = decimal.Max(minFactor, c.factor[side].Div(shrinkFactor))
		c.l.Debug("trade size factor shrunk after idle window",
			zap.String("side", side.String()),
			zap.String("factor", c.factor[side].String()))
	}
}
