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
)

// Candle is one kline as served by the Binance REST API. Only the fields the
// chart needs are kept.
type Candle struct {
	OpenTime time.Time
	Close    float64
}

var validIntervals = map[string]bool{
	"1m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "4h": true, "12h": true,
	"1d": true, "1w": true,
}

// Klines fetches up to limit recent candles for symbol. interval uses Binance
// notation ("1h", "4h", "1d", ...).
func (s *BinanceSource) Klines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if !validIntervals[interval] {
		return nil, errors.Errorf("unsupported kline interval %q", interval)
	}
	if limit <= 0 {
		limit = 120
	}

	endpoint := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		s.baseURL, url.QueryEscape(symbol), interval, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build klines request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "klines request for %s", symbol)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("klines request for %s: status %d", symbol, resp.StatusCode)
	}

	// Binance returns rows of mixed scalars:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var rows [][]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, errors.Wrapf(err, "decoding klines for %s", symbol)
	}

	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		openMs, ok := row[0].(float64)
		if !ok {
			continue
		}
		closeStr, ok := row[4].(string)
		if !ok {
			continue
		}
		closePrice, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			continue
		}
		candles = append(candles, Candle{
			OpenTime: time.UnixMilli(int64(openMs)),
			Close:    closePrice,
		})
	}

	if len(candles) == 0 {
		return nil, errors.Errorf("no kline data for %s", symbol)
	}
	return candles, nil
}
