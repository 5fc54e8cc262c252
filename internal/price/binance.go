package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"longentry-telegram-bot/internal/monitor"
)

const defaultBinanceURL = "https://api.binance.com"

// BinanceSource answers lookups straight from the Binance spot ticker
// endpoint, one request per symbol per tick.
type BinanceSource struct {
	baseURL string
	client  *http.Client
}

func NewBinanceSource(baseURL string) *BinanceSource {
	if baseURL == "" {
		baseURL = defaultBinanceURL
	}
	return &BinanceSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup implements monitor.PriceSource. Any transport, status, or payload
// problem comes back wrapping monitor.ErrUnavailable so the caller skips the
// symbol for this tick.
func (s *BinanceSource) Lookup(ctx context.Context, symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", s.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, errors.Wrap(err, "could not build ticker request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(monitor.ErrUnavailable, "ticker request for %s: %v", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Wrapf(monitor.ErrUnavailable, "ticker request for %s: status %d", symbol, resp.StatusCode)
	}

	var payload struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, errors.Wrapf(monitor.ErrUnavailable, "decoding ticker for %s: %v", symbol, err)
	}

	p, err := strconv.ParseFloat(payload.Price, 64)
	if err != nil {
		return 0, errors.Wrapf(monitor.ErrUnavailable, "parsing ticker price %q for %s: %v", payload.Price, symbol, err)
	}
	return p, nil
}
