package price

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"longentry-telegram-bot/internal/monitor"
)

// PaprikaSource serves lookups from a cache refreshed in the background from
// the CoinPaprika tickers API. Symbols are matched by upper-case ticker symbol
// ("BTC", "ETH"), the first listing wins on collisions.
type PaprikaSource struct {
	client       *coinpaprika.Client
	refreshEvery time.Duration

	mu     sync.RWMutex
	prices map[string]float64
}

func NewPaprikaSource(apiProKey string) *PaprikaSource {
	var client *coinpaprika.Client
	if apiProKey != "" {
		client = coinpaprika.NewClient(nil, coinpaprika.WithAPIKey(apiProKey))
	} else {
		client = coinpaprika.NewClient(nil)
	}
	return &PaprikaSource{
		client:       client,
		refreshEvery: 30 * time.Second,
		prices:       make(map[string]float64),
	}
}

// Start launches the background refresher.
func (s *PaprikaSource) Start() {
	go s.refreshLoop()
	log.Info("coinpaprika price updater started")
}

func (s *PaprikaSource) refreshLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic recovered in coinpaprika refresher: %v, restarting in 10s", r)
			time.Sleep(10 * time.Second)
			go s.refreshLoop()
		}
	}()

	for {
		if err := s.refresh(); err != nil {
			log.Errorf("failed to refresh coinpaprika prices: %v", err)
		} else {
			log.Debug("coinpaprika prices updated")
		}
		time.Sleep(s.refreshEvery)
	}
}

func (s *PaprikaSource) refresh() error {
	tickers, err := s.client.Tickers.List(&coinpaprika.TickersOptions{Quotes: "USD"})
	if err != nil {
		return errors.Wrap(err, "listing coinpaprika tickers")
	}

	fresh := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		if t.Symbol == nil || t.Quotes == nil {
			continue
		}
		usd, ok := t.Quotes["USD"]
		if !ok || usd.Price == nil {
			continue
		}
		symbol := strings.ToUpper(*t.Symbol)
		if _, seen := fresh[symbol]; seen {
			continue
		}
		fresh[symbol] = *usd.Price
	}

	s.mu.Lock()
	s.prices = fresh
	s.mu.Unlock()
	return nil
}

// Lookup implements monitor.PriceSource from the cache.
func (s *PaprikaSource) Lookup(_ context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[strings.ToUpper(symbol)]
	if !ok {
		return 0, errors.Wrapf(monitor.ErrUnavailable, "no coinpaprika price for %s", symbol)
	}
	return p, nil
}
