package internal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/config"
	"github.com/vadiminshakov/arbiter/internal/domain"
	gatewayMock "github.com/vadiminshakov/arbiter/mocks/gateway"
)

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		Pair:                   domain.Pair{From: "BTC", To: "BRL"},
		MinProfitPercent:       decimal.RequireFromString("0.3"),
		Simulation:             true,
		ExecuteMissedSecondLeg: true,
		MinFiatBalance:         decimal.NewFromInt(100),
		MinCryptoBalance:       decimal.RequireFromString("0.0004"),
		StateFile:              filepath.Join(dir, "state", "recovery.json"),
		LedgerDir:              filepath.Join(dir, "profits"),
	}
}

func offer(id string, op domain.Operation, price int64) domain.Offer {
	p := decimal.NewFromInt(price)
	return domain.Offer{
		ID:          id,
		Op:          op,
		Price:       p,
		BaseAmount:  decimal.RequireFromString("0.01"),
		QuoteAmount: p.Mul(decimal.RequireFromString("0.01")),
	}
}

func TestNewTradingBot(t *testing.T) {
	tests := []struct {
		name             string
		mutate           func(*config.Config)
		nilGateway       bool
		expectedErrorMsg string
	}{
		{
			name:             "missing gateway",
			nilGateway:       true,
			expectedErrorMsg: "gateway is required",
		},
		{
			name: "negative min profit",
			mutate: func(c *config.Config) {
				c.MinProfitPercent = decimal.NewFromInt(-1)
			},
			expectedErrorMsg: "failed to create arbitrage engine",
		},
		{
			name: "invalid report schedule",
			mutate: func(c *config.Config) {
				c.ReportCron = "every tuesday"
			},
			expectedErrorMsg: "invalid report schedule",
		},
		{
			name: "valid config",
		},
		{
			name: "valid config with status server and report",
			mutate: func(c *config.Config) {
				c.StatusAddr = "127.0.0.1:0"
				c.ReportCron = "@hourly"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testConfig(t)
			if tt.mutate != nil {
				tt.mutate(&conf)
			}

			var gw *gatewayMock.Gateway
			if !tt.nilGateway {
				gw = gatewayMock.NewGateway(t)
			}

			var bot *TradingBot
			var err error
			if tt.nilGateway {
				bot, err = NewTradingBot(zap.NewNop(), conf, nil)
			} else {
				bot, err = NewTradingBot(zap.NewNop(), conf, gw)
			}

			if tt.expectedErrorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErrorMsg)
				assert.Nil(t, bot)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, bot)
			assert.Equal(t, conf, bot.Config)
			assert.Equal(t, conf.StatusAddr != "", bot.status != nil)
			assert.Equal(t, conf.ReportCron != "", bot.reporter != nil)
			require.NoError(t, bot.Close())
		})
	}
}

func TestTradingBot_RunSimulation(t *testing.T) {
	conf := testConfig(t)
	gw := gatewayMock.NewGateway(t)

	gw.On("GetRateLimits", mock.Anything).Return(domain.RateLimits{WindowMs: 1000, MaxRequests: 200}, nil)
	gw.On("GetBalances", mock.Anything).
		Return(domain.Balances{Fiat: decimal.NewFromInt(5000), Crypto: decimal.RequireFromString("0.05")}, nil)
	gw.On("RequestOffer", mock.Anything, mock.Anything, mock.Anything, domain.OpBuy).
		Return(offer("buy", domain.OpBuy, 100000), nil)
	gw.On("RequestOffer", mock.Anything, mock.Anything, mock.Anything, domain.OpSell).
		Return(offer("sell", domain.OpSell, 100500), nil)

	bot, err := NewTradingBot(zap.NewNop(), conf, gw)
	require.NoError(t, err)
	defer bot.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- bot.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return bot.ledger.LastSequence() >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("trading bot did not stop")
	}

	gw.AssertNotCalled(t, "ConfirmOffer", mock.Anything, mock.Anything)
}

func TestTradingBot_RunRejectsIntervalBelowRateLimit(t *testing.T) {
	conf := testConfig(t)
	conf.Interval = time.Millisecond
	gw := gatewayMock.NewGateway(t)

	gw.On("GetRateLimits", mock.Anything).Return(domain.RateLimits{WindowMs: 60000, MaxRequests: 24}, nil)

	bot, err := NewTradingBot(zap.NewNop(), conf, gw)
	require.NoError(t, err)
	defer bot.Close()

	err = bot.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize arbitrage engine")
}
