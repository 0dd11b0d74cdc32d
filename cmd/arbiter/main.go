// Command arbiter runs the two-leg arbitrage bot against a quote-and-confirm venue.
//
// Usage:
//
//	arbiter --config config.yaml
//	arbiter --pair BTC_BRL --minprofit 0.3 (uses CLI arguments)
//
// Required environment variables (may be set in .env):
//
//	VENUE_API_KEY, VENUE_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/config"
	"github.com/vadiminshakov/arbiter/internal"
	"github.com/vadiminshakov/arbiter/internal/clients"
	"github.com/vadiminshakov/arbiter/internal/logging"
	"github.com/vadiminshakov/arbiter/internal/services/arbitrage"
)

func main() {
	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(logging.Config{Verbose: conf.Verbose, File: conf.LogFile})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if conf.APIKey == "" || conf.APISecret == "" {
		logger.Fatal(config.EnvAPIKey + " and " + config.EnvAPISecret + " environment variables must be set")
	}

	client, err := clients.NewVenueClient(logger.With(zap.String("component", "venue")),
		conf.BaseURL, conf.APIKey, conf.APISecret, conf.Pair)
	if err != nil {
		logger.Fatal("failed to create venue client", zap.Error(err))
	}

	bot, err := internal.NewTradingBot(logger, conf, client)
	if err != nil {
		logger.Fatal("failed to create trading bot", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := bot.Run(ctx)
	if err := bot.Close(); err != nil {
		logger.Warn("failed to close profit ledger", zap.Error(err))
	}

	if runErr != nil {
		if errors.Is(runErr, arbitrage.ErrFatalInconsistency) {
			logger.Error("stopped on unrecoverable state, manual intervention required", zap.Error(runErr))
		} else {
			logger.Error("trading bot stopped", zap.Error(runErr))
		}
		_ = logger.Sync()
		os.Exit(1)
	}
}
