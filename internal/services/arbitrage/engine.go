// Package arbitrage implements the two-leg quote/confirm trade-cycle engine.
package arbitrage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
	"github.com/vadiminshakov/arbiter/internal/events"
	"github.com/vadiminshakov/arbiter/internal/metrics"
	"github.com/vadiminshakov/arbiter/internal/services/allocator"
	"github.com/vadiminshakov/arbiter/internal/services/sizing"
	"github.com/vadiminshakov/arbiter/internal/storage/recovery"
	"github.com/vadiminshakov/arbiter/pkg/retrier"
)

const (
	DefaultRecoveryAttempts = 10
	DefaultRecoveryBackoff  = 500 * time.Millisecond
	DefaultFatalPause       = 500 * time.Millisecond
	DefaultTransientRetries = 3
	DefaultTransientBackoff = 1 * time.Second
)

var (
	DefaultMinFiatBalance   = decimal.NewFromInt(100)
	DefaultMinCryptoBalance = decimal.RequireFromString("0.0004")
)

// Gateway is the venue API consumed by the engine.
type Gateway interface {
	GetBalances(ctx context.Context) (domain.Balances, error)
	GetRateLimits(ctx context.Context) (domain.RateLimits, error)
	// RequestOffer asks for a binding quote. amount is in fiat for SideFiat and in crypto for SideCrypto.
	RequestOffer(ctx context.Context, amount decimal.Decimal, side domain.Side, op domain.Operation) (domain.Offer, error)
	ConfirmOffer(ctx context.Context, offerID string) (domain.Confirmation, error)
	ListTrades(ctx context.Context, op domain.Operation) ([]domain.Trade, error)
}

type snapshotStore interface {
	Load() (*domain.RecoveryState, error)
	Save(state domain.RecoveryState) error
	Delete() error
}

type profitLedger interface {
	Append(record domain.ProfitRecord) error
	LastSequence() uint64
}

// Config configures the engine.
type Config struct {
	Pair             domain.Pair
	MinProfitPercent decimal.Decimal
	// Interval between tick starts; zero adopts the minimum allowed by the venue rate limit.
	Interval time.Duration
	// Simulation skips real confirmations.
	Simulation bool
	// ExecuteMissedSecondLeg enables the recovery protocol after a partial execution.
	ExecuteMissedSecondLeg bool
	// ForceFinalRecoveryAttempt accepts the last recovery quote regardless of profit.
	ForceFinalRecoveryAttempt bool
	// MaxFiatBalance and MaxCryptoBalance cap the usable balance; zero means no cap.
	MaxFiatBalance   decimal.Decimal
	MaxCryptoBalance decimal.Decimal
	MinFiatBalance   decimal.Decimal
	MinCryptoBalance decimal.Decimal

	RecoveryAttempts int
	RecoveryBackoff  time.Duration
	FatalPause       time.Duration
	TransientRetries int
	TransientBackoff time.Duration
}

func (c *Config) applyDefaults() {
	if c.MinFiatBalance.IsZero() {
		c.MinFiatBalance = DefaultMinFiatBalance
	}
	if c.MinCryptoBalance.IsZero() {
		c.MinCryptoBalance = DefaultMinCryptoBalance
	}
	if c.RecoveryAttempts <= 0 {
		c.RecoveryAttempts = DefaultRecoveryAttempts
	}
	if c.RecoveryBackoff <= 0 {
		c.RecoveryBackoff = DefaultRecoveryBackoff
	}
	if c.FatalPause < 0 {
		c.FatalPause = 0
	}
	if c.TransientRetries < 0 {
		c.TransientRetries = 0
	}
	if c.TransientBackoff <= 0 {
		c.TransientBackoff = DefaultTransientBackoff
	}
}

// Status is a read-only view of the engine for observers.
type Status struct {
	Sequence     uint64               `json:"cycle"`
	Mode         string               `json:"mode"`
	Balances     domain.Balances      `json:"balances"`
	Recovery     domain.RecoveryState `json:"recovery"`
	FiatTicks    int                  `json:"fiat_ticks"`
	CryptoTicks  int                  `json:"crypto_ticks"`
	FiatFactor   decimal.Decimal      `json:"fiat_factor"`
	CryptoFactor decimal.Decimal      `json:"crypto_factor"`
	Interval     string               `json:"interval"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Engine owns all trade-cycle state. Its methods must be driven by a single goroutine;
// Status is the only method safe to call concurrently.
type Engine struct {
	cfg       Config
	l         *zap.Logger
	gateway   Gateway
	store     snapshotStore
	ledger    profitLedger
	sizer     *sizing.Controller
	alloc     *allocator.Allocator
	transient *retrier.Retrier
	recoverer *retrier.Retrier

	mode     domain.Side
	recovery domain.RecoveryState
	balances domain.Balances
	seq      uint64
	interval time.Duration

	status  atomic.Pointer[Status]
	updates *events.Broadcaster[Status]
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSleep replaces the wait used by backoffs and the fatal pause.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// WithStatusUpdates publishes every status change to b.
func WithStatusUpdates(b *events.Broadcaster[Status]) Option {
	return func(e *Engine) {
		e.updates = b
	}
}

// NewEngine returns a configured engine. Call Initialize before the first tick.
func NewEngine(l *zap.Logger, cfg Config, gateway Gateway, store snapshotStore, ledger profitLedger,
	sizer *sizing.Controller, alloc *allocator.Allocator, opts ...Option) (*Engine, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if store == nil || ledger == nil {
		return nil, errors.New("recovery store and profit ledger are required")
	}
	if sizer == nil || alloc == nil {
		return nil, errors.New("sizing controller and allocator are required")
	}
	if cfg.MinProfitPercent.IsNegative() {
		return nil, errors.Errorf("min profit percent must not be negative, got %s", cfg.MinProfitPercent.String())
	}
	cfg.applyDefaults()

	e := &Engine{
		cfg:     cfg,
		l:       l,
		gateway: gateway,
		store:   store,
		ledger:  ledger,
		sizer:   sizer,
		alloc:   alloc,
		mode:    domain.SideFiat,
		now:     time.Now,
		sleep:   retrier.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.transient = retrier.New(
		retrier.WithMaxRetries(cfg.TransientRetries),
		retrier.WithFixedBackoff(cfg.TransientBackoff),
		retrier.WithRetryIf(func(err error) bool { return errors.Is(err, domain.ErrTransient) }),
		retrier.WithSleep(e.sleep),
	)
	e.recoverer = retrier.New(
		retrier.WithMaxRetries(cfg.RecoveryAttempts-1),
		retrier.WithFixedBackoff(cfg.RecoveryBackoff),
		retrier.WithSleep(e.sleep),
	)

	return e, nil
}

// Initialize restores persisted recovery state, validates the tick interval against the
// venue rate limit and loads balances.
func (e *Engine) Initialize(ctx context.Context) error {
	state, err := e.store.Load()
	switch {
	case errors.Is(err, recovery.ErrCorruptSnapshot):
		e.l.Warn("recovery snapshot is corrupt, starting clean", zap.Error(err))
	case err != nil:
		return errors.Wrap(err, "failed to load recovery snapshot")
	case state != nil:
		e.recovery = *state
		e.l.Warn("resuming persisted recovery state",
			zap.Bool("fiat_degraded", state.Fiat.Active),
			zap.Bool("crypto_degraded", state.Crypto.Active),
			zap.Bool("had_loss", state.HadLoss))
	}

	e.seq = e.ledger.LastSequence()

	limits, err := retrier.DoWithData(e.transient, ctx, e.gateway.GetRateLimits)
	if err != nil {
		return errors.Wrap(err, "failed to get rate limits")
	}
	minInterval := limits.MinInterval()
	e.l.Info("offer rate limits",
		zap.Int64("max_requests", limits.MaxRequests),
		zap.Int64("window_ms", limits.WindowMs))

	switch {
	case e.cfg.Interval == 0:
		e.interval = minInterval
		e.l.Info("interval not configured, using minimum", zap.Duration("interval", e.interval))
	case e.cfg.Interval < minInterval:
		return errors.Errorf("interval too small (%s), must be at least %s", e.cfg.Interval, minInterval)
	default:
		e.interval = e.cfg.Interval
	}

	if err := e.refreshBalances(ctx); err != nil {
		return err
	}

	if e.sizer.Enabled() && e.alloc.Enabled() {
		e.l.Warn("adaptive sizing and proportional cycling are both enabled; allocation picks the side, sizing picks the amount")
	}

	e.l.Info("engine initialized",
		zap.String("pair", e.cfg.Pair.String()),
		zap.String("min_profit_percent", e.cfg.MinProfitPercent.String()),
		zap.Bool("simulation", e.cfg.Simulation),
		zap.Uint64("last_cycle", e.seq))

	e.publish()
	return nil
}

// Interval returns the effective tick interval.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// Mode returns the side the next tick starts from.
func (e *Engine) Mode() domain.Side {
	return e.mode
}

// RecoveryState returns a copy of the degraded/loss state.
func (e *Engine) RecoveryState() domain.RecoveryState {
	return e.recovery
}

// Status returns the last published view; safe for concurrent use.
func (e *Engine) Status() Status {
	if s := e.status.Load(); s != nil {
		return *s
	}
	return Status{}
}

func (e *Engine) publish() {
	fiatTicks, cryptoTicks := e.alloc.Allocation()
	st := &Status{
		Sequence:     e.seq,
		Mode:         e.mode.String(),
		Balances:     e.balances,
		Recovery:     e.recovery,
		FiatTicks:    fiatTicks,
		CryptoTicks:  cryptoTicks,
		FiatFactor:   e.sizer.Factor(domain.SideFiat),
		CryptoFactor: e.sizer.Factor(domain.SideCrypto),
		Interval:     e.interval.String(),
		UpdatedAt:    e.now(),
	}
	e.status.Store(st)
	if e.updates != nil {
		e.updates.Publish(*st)
	}

	metrics.Degraded.WithLabelValues(domain.SideFiat.String()).Set(metrics.BoolGauge(e.recovery.Fiat.Active))
	metrics.Degraded.WithLabelValues(domain.SideCrypto.String()).Set(metrics.BoolGauge(e.recovery.Crypto.Active))
	metrics.HadLoss.Set(metrics.BoolGauge(e.recovery.HadLoss))
}

func (e *Engine) refreshBalances(ctx context.Context) error {
	balances, err := retrier.DoWithData(e.transient, ctx, e.gateway.GetBalances)
	if err != nil {
		return errors.Wrap(err, "failed to get balances")
	}
	e.balances = balances

	e.l.Info("balances",
		zap.String(e.cfg.Pair.To, balances.Fiat.String()),
		zap.String(e.cfg.Pair.From, balances.Crypto.String()))

	return nil
}

// persistRecovery writes the snapshot, or removes it once nothing is outstanding.
func (e *Engine) persistRecovery(l *zap.Logger) {
	var err error
	if e.recovery.Clean() {
		err = e.store.Delete()
	} else {
		err = e.store.Save(e.recovery)
	}
	if err != nil {
		l.Error("failed to persist recovery snapshot", zap.Error(err))
	}
}

// available returns the side's balance limited by its configured cap.
func (e *Engine) available(side domain.Side) decimal.Decimal {
	balance := e.balances.Of(side)
	limit := e.cfg.MaxFiatBalance
	if side == domain.SideCrypto {
		limit = e.cfg.MaxCryptoBalance
	}
	if limit.IsPositive() {
		return decimal.Min(balance, limit)
	}
	return balance
}

func (e *Engine) belowMinimum(side domain.Side) bool {
	if side == domain.SideFiat {
		return e.balances.Fiat.LessThan(e.cfg.MinFiatBalance)
	}
	return e.balances.Crypto.LessThan(e.cfg.MinCryptoBalance)
}
