// Package coingecko quotes asset prices from the CoinGecko simple price API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gabapcia/walletsync/internal/fiatprice"
	"github.com/gabapcia/walletsync/internal/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

type client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

var _ fiatprice.PriceAPI = (*client)(nil)

// Price returns the price of one unit of assetID in currency.
func (c *client) Price(ctx context.Context, assetID, currency string) (decimal.Decimal, error) {
	currency = strings.ToLower(currency)

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, assetID, currency)
	})
	if err != nil {
		return decimal.Zero, err
	}

	return res.(decimal.Decimal), nil
}

func (c *client) fetch(ctx context.Context, assetID, currency string) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("ids", assetID)
	query.Set("vs_currencies", currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+query.Encode(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: http status %d", fiatprice.ErrPriceUnavailable, res.StatusCode)
	}

	var body map[string]map[string]json.Number
	decoder := json.NewDecoder(res.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", fiatprice.ErrPriceUnavailable, err)
	}

	quote, ok := body[assetID][currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no %s quote for %s", fiatprice.ErrPriceUnavailable, currency, assetID)
	}

	price, err := decimal.NewFromString(quote.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", fiatprice.ErrPriceUnavailable, err)
	}
	return price, nil
}

func newCircuitBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "coingecko",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests > 20 && failureRatio >= 0.7
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := context.Background()
			if to == gobreaker.StateOpen {
				logger.Warn(ctx, "price api seems down, stop allowing requests", "breaker.name", name)
			}
			if from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen {
				logger.Info(ctx, "checking price api status", "breaker.name", name)
			}
			if from == gobreaker.StateHalfOpen && to == gobreaker.StateClosed {
				logger.Info(ctx, "price api seems ok, restart allowing requests", "breaker.name", name)
			}
		},
	})
}

// NewClient returns a CoinGecko client. An empty baseURL selects DefaultBaseURL.
func NewClient(httpClient *http.Client, baseURL string) *client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		breaker:    newCircuitBreaker(),
	}
}
