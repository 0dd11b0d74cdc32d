package internal

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/arbiter/config"
	"github.com/vadiminshakov/arbiter/internal/events"
	"github.com/vadiminshakov/arbiter/internal/services/allocator"
	"github.com/vadiminshakov/arbiter/internal/services/arbitrage"
	"github.com/vadiminshakov/arbiter/internal/services/report"
	"github.com/vadiminshakov/arbiter/internal/services/sizing"
	"github.com/vadiminshakov/arbiter/internal/storage/ledger"
	"github.com/vadiminshakov/arbiter/internal/storage/recovery"
	"github.com/vadiminshakov/arbiter/internal/web"
)

const statusBuffer = 16

// TradingBot represents a single arbitrage instance with its stores and status server.
type TradingBot struct {
	Config config.Config
	Engine *arbitrage.Engine

	l        *zap.Logger
	ledger   *ledger.WALStore
	status   *web.Server
	reporter *report.Reporter
}

// NewTradingBot creates a new trading bot instance
func NewTradingBot(l *zap.Logger, conf config.Config, gateway arbitrage.Gateway) (*TradingBot, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}

	store, err := recovery.NewStore(conf.StateFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create recovery store")
	}

	profits, err := ledger.NewWALStore(conf.LedgerDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create profit ledger")
	}

	bl := l.With(zap.String("pair", conf.Pair.String()))

	sizer := sizing.NewController(bl.With(zap.String("component", "sizing")), sizing.Config{
		Enabled:    conf.AdaptiveSizing,
		BaseFiat:   conf.BaseFiatAmount,
		BaseCrypto: conf.BaseCryptoAmount,
		IdleWindow: conf.IdleWindow,
	}, nil)
	alloc := allocator.New(bl.With(zap.String("component", "allocator")), conf.ProportionalCycling)
	updates := events.NewBroadcaster[arbitrage.Status](statusBuffer)

	engine, err := arbitrage.NewEngine(bl, arbitrage.Config{
		Pair:                      conf.Pair,
		MinProfitPercent:          conf.MinProfitPercent,
		Interval:                  conf.Interval,
		Simulation:                conf.Simulation,
		ExecuteMissedSecondLeg:    conf.ExecuteMissedSecondLeg,
		ForceFinalRecoveryAttempt: conf.ForceFinalRecoveryAttempt,
		MaxFiatBalance:            conf.MaxFiatBalance,
		MaxCryptoBalance:          conf.MaxCryptoBalance,
		MinFiatBalance:            conf.MinFiatBalance,
		MinCryptoBalance:          conf.MinCryptoBalance,
		TransientRetries:          arbitrage.DefaultTransientRetries,
		TransientBackoff:          arbitrage.DefaultTransientBackoff,
		FatalPause:                arbitrage.DefaultFatalPause,
	}, gateway, store, profits, sizer, alloc, arbitrage.WithStatusUpdates(updates))
	if err != nil {
		_ = profits.Close()
		return nil, errors.Wrap(err, "failed to create arbitrage engine")
	}

	bot := &TradingBot{
		Config: conf,
		Engine: engine,
		l:      bl,
		ledger: profits,
	}
	if conf.StatusAddr != "" {
		bot.status = web.NewServer(bl.With(zap.String("component", "status")), conf.StatusAddr, profits, engine)
		bot.status.Updates = updates
	}

	if conf.ReportCron != "" {
		bot.reporter = report.New(bl.With(zap.String("component", "report")), profits)
		if err := bot.reporter.Schedule(conf.ReportCron); err != nil {
			_ = profits.Close()
			return nil, err
		}
	}

	return bot, nil
}

// Close closes the trading bot
func (b *TradingBot) Close() error {
	return b.ledger.Close()
}

// Run initializes the engine and drives it until ctx is cancelled or a fatal inconsistency occurs.
// The status server and the profit report, when configured, run alongside and stop with the engine.
func (b *TradingBot) Run(ctx context.Context) error {
	if err := b.Engine.Initialize(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize arbitrage engine")
	}

	g, gctx := errgroup.WithContext(ctx)

	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return b.Engine.Run(runCtx)
	})

	if b.status != nil {
		g.Go(func() error {
			return b.status.Start(runCtx)
		})
	}

	if b.reporter != nil {
		g.Go(func() error {
			return b.reporter.Start(runCtx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		b.l.Info("trading bot stopped")
		return nil
	}
	return err
}
