package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

var venuePair = domain.Pair{From: "BTC", To: "BRL"}

func newVenue(t *testing.T, handler http.HandlerFunc) *VenueClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewVenueClient(zap.NewNop(), srv.URL, "key", "secret", venuePair)
	require.NoError(t, err)

	return client
}

func writeData(t *testing.T, w http.ResponseWriter, status int, message string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(envelope{Message: message, Data: raw}))
}

func TestNewVenueClient_RequiresCredentials(t *testing.T) {
	_, err := NewVenueClient(zap.NewNop(), "", "", "secret", venuePair)
	require.Error(t, err)

	_, err = NewVenueClient(zap.NewNop(), "", "key", "", venuePair)
	require.Error(t, err)
}

func TestVenueClient_GetBalances(t *testing.T) {
	client := newVenue(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, balancePath, r.URL.Path)
		require.Equal(t, "key", r.Header.Get(headerAPIKey))
		require.NotEmpty(t, r.Header.Get(headerNonce))
		require.NotEmpty(t, r.Header.Get(headerSign))

		writeData(t, w, http.StatusOK, "", map[string]string{"BRL": "5000.50", "BTC": "0.01"})
	})

	balances, err := client.GetBalances(context.Background())
	require.NoError(t, err)
	require.True(t, balances.Fiat.Equal(decimal.RequireFromString("5000.50")))
	require.True(t, balances.Crypto.Equal(decimal.RequireFromString("0.01")))
}

func TestVenueClient_GetRateLimits(t *testing.T) {
	client := newVenue(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, metaPath, r.URL.Path)
		writeData(t, w, http.StatusOK, "", map[string]any{
			"endpoints": map[string]any{
				"offer": map[string]any{
					"post": map[string]any{
						"rateLimit": map[string]any{"windowMs": 60000, "maxRequests": 24},
					},
				},
			},
		})
	})

	limits, err := client.GetRateLimits(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.RateLimits{WindowMs: 60000, MaxRequests: 24}, limits)
}

func TestVenueClient_RequestOffer(t *testing.T) {
	client := newVenue(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, offerPath, r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req offerRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.Equal(t, offerRequest{Amount: "5000", IsQuote: true, Op: "buy", Base: "BTC", Quote: "BRL"}, req)

		signer := &VenueClient{apiSecret: "secret"}
		require.Equal(t, signer.sign(offerPath, r.Header.Get(headerNonce), body), r.Header.Get(headerSign))

		writeData(t, w, http.StatusOK, "", map[string]any{
			"offerId":     "offer-1",
			"op":          "buy",
			"isQuote":     true,
			"baseAmount":  "0.05",
			"quoteAmount": "5000",
			"efPrice":     "100000",
		})
	})

	offer, err := client.RequestOffer(context.Background(), decimal.NewFromInt(5000), domain.SideFiat, domain.OpBuy)
	require.NoError(t, err)
	require.Equal(t, "offer-1", offer.ID)
	require.Equal(t, domain.OpBuy, offer.Op)
	require.Equal(t, domain.SideFiat, offer.Side)
	require.True(t, offer.Price.Equal(decimal.NewFromInt(100000)))
	require.True(t, offer.BaseAmount.Equal(decimal.RequireFromString("0.05")))
}

func TestVenueClient_ListTrades(t *testing.T) {
	client := newVenue(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, tradesPath, r.URL.Path)
		require.Equal(t, "sell", r.URL.Query().Get("op"))

		writeData(t, w, http.StatusOK, "", []map[string]any{
			{"id": "t-1", "offerId": "offer-1", "op": "sell", "baseAmount": "0.05", "quoteAmount": "5020", "efPrice": "100400", "date": "2026-10-01T10:00:00Z"},
		})
	})

	trades, err := client.ListTrades(context.Background(), domain.OpSell)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, "offer-1", trades[0].OfferID)
	require.Equal(t, domain.OpSell, trades[0].Op)
	require.True(t, trades[0].QuoteAmount.Equal(decimal.NewFromInt(5020)))
	require.Equal(t, 2026, trades[0].Date.Year())
}

func TestVenueClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, want: domain.ErrTransient},
		{name: "server error", status: http.StatusBadGateway, want: domain.ErrTransient},
		{name: "expired offer", status: http.StatusBadRequest, message: "Offer expired", want: domain.ErrOfferRejected},
		{name: "unknown offer", status: http.StatusNotFound, want: domain.ErrOfferRejected},
		{name: "bad request", status: http.StatusBadRequest, message: "invalid amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newVenue(t, func(w http.ResponseWriter, r *http.Request) {
				writeData(t, w, tt.status, tt.message, nil)
			})

			_, err := client.ConfirmOffer(context.Background(), "offer-1")
			require.Error(t, err)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
			} else {
				require.NotErrorIs(t, err, domain.ErrTransient)
				require.NotErrorIs(t, err, domain.ErrOfferRejected)
			}
		})
	}
}

func TestVenueClient_NonceIsMonotonic(t *testing.T) {
	client := &VenueClient{}

	prev, err := strconv.ParseInt(client.nonce(), 10, 64)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		next, err := strconv.ParseInt(client.nonce(), 10, 64)
		require.NoError(t, err)
		require.Greater(t, next, prev)
		prev = next
	}
}
