package clients

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

const (
	DefaultVenueURL = "https://api.biscoint.io"

	venueTimeout     = 15 * time.Second
	tradesPageLength = 20

	headerNonce  = "X-API-NONCE"
	headerAPIKey = "X-API-KEY"
	headerSign   = "X-API-SIGN"
)

const (
	balancePath = "/v1/balance"
	metaPath    = "/v1/meta"
	offerPath   = "/v1/offer"
	confirmPath = "/v1/offer/confirm"
	tradesPath  = "/v1/trades"
)

// VenueClient is the authenticated quote/confirm API client.
type VenueClient struct {
	l         *zap.Logger
	client    *resty.Client
	pair      domain.Pair
	apiKey    string
	apiSecret string

	mu        sync.Mutex
	lastNonce int64
}

// NewVenueClient creates a client for baseURL. Transport retries are disabled:
// retry policy belongs to the caller, and confirmations must never be replayed.
func NewVenueClient(l *zap.Logger, baseURL, apiKey, apiSecret string, pair domain.Pair) (*VenueClient, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	if apiSecret == "" {
		return nil, errors.New("api secret is required")
	}
	if baseURL == "" {
		baseURL = DefaultVenueURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(venueTimeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &VenueClient{
		l:         l,
		client:    client,
		pair:      pair,
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}, nil
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type metaResponse struct {
	Endpoints struct {
		Offer struct {
			Post struct {
				RateLimit struct {
					WindowMs    int64 `json:"windowMs"`
					MaxRequests int64 `json:"maxRequests"`
				} `json:"rateLimit"`
			} `json:"post"`
		} `json:"offer"`
	} `json:"endpoints"`
}

type offerRequest struct {
	Amount  string `json:"amount"`
	IsQuote bool   `json:"isQuote"`
	Op      string `json:"op"`
	Base    string `json:"base"`
	Quote   string `json:"quote"`
}

type offerResponse struct {
	OfferID     string          `json:"offerId"`
	Op          string          `json:"op"`
	IsQuote     bool            `json:"isQuote"`
	BaseAmount  decimal.Decimal `json:"baseAmount"`
	QuoteAmount decimal.Decimal `json:"quoteAmount"`
	EfPrice     decimal.Decimal `json:"efPrice"`
}

type confirmRequest struct {
	OfferID string `json:"offerId"`
}

type tradeResponse struct {
	ID          string          `json:"id"`
	OfferID     string          `json:"offerId"`
	Op          string          `json:"op"`
	IsQuote     bool            `json:"isQuote"`
	BaseAmount  decimal.Decimal `json:"baseAmount"`
	QuoteAmount decimal.Decimal `json:"quoteAmount"`
	EfPrice     decimal.Decimal `json:"efPrice"`
	Date        time.Time       `json:"date"`
}

// GetBalances returns fiat and crypto balances of the pair.
func (c *VenueClient) GetBalances(ctx context.Context) (domain.Balances, error) {
	var balances map[string]decimal.Decimal
	if err := c.do(ctx, http.MethodGet, balancePath, nil, nil, &balances); err != nil {
		return domain.Balances{}, errors.Wrap(err, "balance")
	}

	return domain.Balances{
		Fiat:   balances[c.pair.To],
		Crypto: balances[c.pair.From],
	}, nil
}

// GetRateLimits returns the rate limit of the offer endpoint.
func (c *VenueClient) GetRateLimits(ctx context.Context) (domain.RateLimits, error) {
	var meta metaResponse
	if err := c.do(ctx, http.MethodGet, metaPath, nil, nil, &meta); err != nil {
		return domain.RateLimits{}, errors.Wrap(err, "meta")
	}

	limit := meta.Endpoints.Offer.Post.RateLimit
	if limit.MaxRequests <= 0 || limit.WindowMs <= 0 {
		return domain.RateLimits{}, errors.Errorf("invalid offer rate limit %d/%dms", limit.MaxRequests, limit.WindowMs)
	}

	return domain.RateLimits{WindowMs: limit.WindowMs, MaxRequests: limit.MaxRequests}, nil
}

// RequestOffer asks for a binding quote of amount, in fiat when side is SideFiat and in crypto otherwise.
func (c *VenueClient) RequestOffer(ctx context.Context, amount decimal.Decimal, side domain.Side, op domain.Operation) (domain.Offer, error) {
	req := offerRequest{
		Amount:  amount.String(),
		IsQuote: side.IsQuote(),
		Op:      string(op),
		Base:    c.pair.From,
		Quote:   c.pair.To,
	}

	var resp offerResponse
	if err := c.do(ctx, http.MethodPost, offerPath, nil, req, &resp); err != nil {
		return domain.Offer{}, errors.Wrapf(err, "%s offer", op)
	}
	if resp.OfferID == "" {
		return domain.Offer{}, errors.New("offer response without id")
	}

	return domain.Offer{
		ID:          resp.OfferID,
		Op:          op,
		Side:        side,
		Price:       resp.EfPrice,
		BaseAmount:  resp.BaseAmount,
		QuoteAmount: resp.QuoteAmount,
	}, nil
}

// ConfirmOffer executes an offer. It is never retried here.
func (c *VenueClient) ConfirmOffer(ctx context.Context, offerID string) (domain.Confirmation, error) {
	var resp offerResponse
	if err := c.do(ctx, http.MethodPost, confirmPath, nil, confirmRequest{OfferID: offerID}, &resp); err != nil {
		return domain.Confirmation{}, errors.Wrapf(err, "confirm offer %s", offerID)
	}

	return domain.Confirmation{
		OfferID:     offerID,
		BaseAmount:  resp.BaseAmount,
		QuoteAmount: resp.QuoteAmount,
	}, nil
}

// ListTrades returns the most recent executed trades of op.
func (c *VenueClient) ListTrades(ctx context.Context, op domain.Operation) ([]domain.Trade, error) {
	query := map[string]string{
		"op":     string(op),
		"length": strconv.Itoa(tradesPageLength),
	}

	var resp []tradeResponse
	if err := c.do(ctx, http.MethodGet, tradesPath, query, nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "%s trades", op)
	}

	trades := make([]domain.Trade, 0, len(resp))
	for _, t := range resp {
		trades = append(trades, domain.Trade{
			ID:          t.ID,
			OfferID:     t.OfferID,
			Op:          domain.Operation(t.Op),
			IsQuote:     t.IsQuote,
			BaseAmount:  t.BaseAmount,
			QuoteAmount: t.QuoteAmount,
			Price:       t.EfPrice,
			Date:        t.Date,
		})
	}

	return trades, nil
}

func (c *VenueClient) do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	payload := []byte("{}")
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, "marshal request")
		}
	}

	nonce := c.nonce()
	req := c.client.R().
		SetContext(ctx).
		SetHeader(headerNonce, nonce).
		SetHeader(headerAPIKey, c.apiKey).
		SetHeader(headerSign, c.sign(path, nonce, payload))

	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(payload)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.Wrapf(domain.ErrTransient, "%s %s: %v", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil && resp.IsSuccess() {
		return errors.Wrapf(err, "decode %s response", path)
	}

	if !resp.IsSuccess() {
		return classify(resp.StatusCode(), env.Message)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrapf(err, "decode %s data", path)
	}

	c.l.Debug("venue request", zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode()), zap.Duration("elapsed", resp.Time()))

	return nil
}

// classify maps non-2xx responses to domain errors.
func classify(status int, message string) error {
	switch {
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return errors.Wrapf(domain.ErrTransient, "status %d: %s", status, message)
	case isRejection(message), status == http.StatusNotFound, status == http.StatusGone:
		return errors.Wrapf(domain.ErrOfferRejected, "status %d: %s", status, message)
	default:
		return errors.Errorf("status %d: %s", status, message)
	}
}

func isRejection(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "expired") || strings.Contains(m, "rejected") || strings.Contains(m, "price changed")
}

// nonce returns a strictly increasing value.
func (c *VenueClient) nonce() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := time.Now().UnixNano()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n

	return strconv.FormatInt(n, 10)
}

// sign returns hex(HMAC-SHA384(secret, base64(path + nonce + body))).
func (c *VenueClient) sign(path, nonce string, body []byte) string {
	message := base64.StdEncoding.EncodeToString([]byte(path + nonce + string(body)))

	mac := hmac.New(sha512.New384, []byte(c.apiSecret))
	mac.Write([]byte(message))

	return hex.EncodeToString(mac.Sum(nil))
}
