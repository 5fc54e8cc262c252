package price

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"longentry-telegram-bot/internal/monitor"
)

const defaultStreamURL = "wss://stream.binance.com:9443/ws/!miniTicker@arr"

// StreamSource keeps the latest close for every symbol pushed on the Binance
// combined miniTicker websocket stream.
type StreamSource struct {
	url         string
	reconnectIn time.Duration

	mu     sync.RWMutex
	prices map[string]float64
}

func NewStreamSource(wsURL string) *StreamSource {
	if wsURL == "" {
		wsURL = defaultStreamURL
	}
	return &StreamSource{
		url:         wsURL,
		reconnectIn: 5 * time.Second,
		prices:      make(map[string]float64),
	}
}

// Start launches the reader goroutine. The connection is re-dialed after any
// failure; stale cache entries keep answering lookups in between.
func (s *StreamSource) Start() {
	go s.readLoop()
	log.Info("miniTicker stream source started")
}

func (s *StreamSource) readLoop() {
	for {
		if err := s.consume(); err != nil {
			log.Errorf("miniTicker stream: %v, reconnecting in %s", err, s.reconnectIn)
		}
		time.Sleep(s.reconnectIn)
	}
}

func (s *StreamSource) consume() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		return errors.Wrap(err, "dialing stream")
	}
	defer conn.Close()
	log.Debug("miniTicker stream connected")

	for {
		var tickers []struct {
			Symbol string `json:"s"`
			Close  string `json:"c"`
		}
		if err := conn.ReadJSON(&tickers); err != nil {
			return errors.Wrap(err, "reading stream")
		}

		s.mu.Lock()
		for _, t := range tickers {
			if p, err := strconv.ParseFloat(t.Close, 64); err == nil {
				s.prices[strings.ToUpper(t.Symbol)] = p
			}
		}
		s.mu.Unlock()
	}
}

// Lookup implements monitor.PriceSource from the stream cache.
func (s *StreamSource) Lookup(_ context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[strings.ToUpper(symbol)]
	if !ok {
		return 0, errors.Wrapf(monitor.ErrUnavailable, "no streamed price for %s yet", symbol)
	}
	return p, nil
}
