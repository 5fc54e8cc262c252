package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"longentry-telegram-bot/internal/registry"
	"longentry-telegram-bot/internal/types"
)

// ErrUnavailable marks a price that could not be fetched this tick. The level
// is left untouched and retried on the next scan.
var ErrUnavailable = errors.New("price unavailable")

// PriceSource returns the latest known price for a symbol, or an error
// wrapping ErrUnavailable when it has none.
type PriceSource interface {
	Lookup(ctx context.Context, symbol string) (float64, error)
}

// Notifier delivers a one-time alert for a triggered level. Failures are
// logged and never retried; the level stays removed.
type Notifier interface {
	Notify(chatID int64, level types.TargetLevel, currentPrice float64) error
}

// State of the scan loop, exposed for the health endpoint and tests.
type State int32

const (
	StateIdle State = iota
	StateScanning
)

func (s State) String() string {
	if s == StateScanning {
		return "scanning"
	}
	return "idle"
}

// Metrics are optional prometheus hooks incremented by the scan loop.
type Metrics struct {
	Scans           prometheus.Counter
	AlertsTriggered prometheus.Counter
	FetchFailures   prometheus.Counter
}

// Monitor periodically scans the registry and fires one-shot alerts for
// levels whose symbol trades at or below the target price.
type Monitor struct {
	registry *registry.Registry
	source   PriceSource
	notifier Notifier

	interval time.Duration
	cooldown time.Duration

	state   atomic.Int32
	metrics Metrics
}

func New(reg *registry.Registry, source PriceSource, notifier Notifier, interval, cooldown time.Duration) *Monitor {
	return &Monitor{
		registry: reg,
		source:   source,
		notifier: notifier,
		interval: interval,
		cooldown: cooldown,
	}
}

func (m *Monitor) SetMetrics(metrics Metrics) {
	m.metrics = metrics
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Start launches the scan loop in the background. The loop lives for the
// process; a failed scan shortens the next wait to the cooldown instead of
// stopping anything.
func (m *Monitor) Start() {
	go m.run()
	log.Infof("price monitor started, checking every %s", m.interval)
}

func (m *Monitor) run() {
	for {
		wait := m.interval
		if err := m.Scan(context.Background()); err != nil {
			log.Errorf("scan failed: %v, retrying in %s", err, m.cooldown)
			wait = m.cooldown
		}
		time.Sleep(wait)
	}
}

// Scan runs a single pass over a snapshot of the registry. Per-level failures
// are logged and skipped; only a panic escaping the loop fails the whole scan.
func (m *Monitor) Scan(ctx context.Context) (err error) {
	m.state.Store(int32(StateScanning))
	defer m.state.Store(int32(StateIdle))
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("recovered from scan panic: %v", r)
		}
	}()

	if m.metrics.Scans != nil {
		m.metrics.Scans.Inc()
	}

	checked := 0
	for _, entry := range m.registry.SnapshotAll() {
		symbol := entry.Level.Symbol

		current, lookupErr := m.source.Lookup(ctx, symbol)
		if lookupErr != nil {
			log.Debugf("no price for %s this tick: %v", symbol, lookupErr)
			if m.metrics.FetchFailures != nil {
				m.metrics.FetchFailures.Inc()
			}
			continue
		}
		checked++

		if current > entry.Level.TargetPrice {
			continue
		}

		// Claim the level before notifying. Losing the claim means a manual
		// /remove (or another scan) got there first, so no alert is owed.
		popped := m.registry.PopIf(entry.ChatID, symbol, func(p float64) bool {
			return p <= entry.Level.TargetPrice
		}, current)
		if popped == nil {
			continue
		}

		if m.metrics.AlertsTriggered != nil {
			m.metrics.AlertsTriggered.Inc()
		}
		if notifyErr := m.notifier.Notify(entry.ChatID, *popped, current); notifyErr != nil {
			log.Errorf("failed to deliver alert for %s to chat %d: %v", symbol, entry.ChatID, notifyErr)
		} else {
			log.Infof("alert sent: %s at %f (target %f) for chat %d", symbol, current, popped.TargetPrice, entry.ChatID)
		}
	}

	if checked > 0 {
		log.Debugf("checked %d levels", checked)
	}
	return nil
}
