package registry

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"longentry-telegram-bot/internal/types"
)

var (
	ErrEmptySymbol  = errors.New("symbol must not be empty")
	ErrInvalidPrice = errors.New("target price must be a positive number")
)

// Entry pairs a level with its owning chat, as returned by SnapshotAll.
type Entry struct {
	ChatID int64
	Level  types.TargetLevel
}

// Registry holds every chat's pending target levels in memory. Levels are
// replaced whole on update, never mutated in place, and each level leaves the
// registry on exactly one path: a manual Remove or a winning PopIf.
type Registry struct {
	mu     sync.RWMutex
	levels map[int64]map[string]*types.TargetLevel
	order  map[int64][]string // symbols per chat, oldest first
}

func New() *Registry {
	return &Registry{
		levels: make(map[int64]map[string]*types.TargetLevel),
		order:  make(map[int64][]string),
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Upsert stores a target level for (chatID, symbol), replacing any existing
// one. It reports whether an existing level was replaced and, if so, its old
// target price.
func (r *Registry) Upsert(chatID int64, symbol string, price float64) (types.TargetLevel, bool, float64, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return types.TargetLevel{}, false, 0, ErrEmptySymbol
	}
	if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return types.TargetLevel{}, false, 0, ErrInvalidPrice
	}

	level := types.TargetLevel{
		Symbol:      symbol,
		TargetPrice: price,
		CreatedAt:   time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	chatLevels, ok := r.levels[chatID]
	if !ok {
		chatLevels = make(map[string]*types.TargetLevel)
		r.levels[chatID] = chatLevels
	}

	prev, isUpdate := chatLevels[symbol]
	chatLevels[symbol] = &level
	if isUpdate {
		return level, true, prev.TargetPrice, nil
	}

	r.order[chatID] = append(r.order[chatID], symbol)
	return level, false, 0, nil
}

// Remove deletes the level for (chatID, symbol) and returns it, or nil if no
// such level exists.
func (r *Registry) Remove(chatID int64, symbol string) *types.TargetLevel {
	symbol = normalizeSymbol(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(chatID, symbol)
}

func (r *Registry) removeLocked(chatID int64, symbol string) *types.TargetLevel {
	chatLevels, ok := r.levels[chatID]
	if !ok {
		return nil
	}
	level, ok := chatLevels[symbol]
	if !ok {
		return nil
	}

	delete(chatLevels, symbol)
	if len(chatLevels) == 0 {
		delete(r.levels, chatID)
		delete(r.order, chatID)
		return level
	}

	symbols := r.order[chatID]
	for i, s := range symbols {
		if s == symbol {
			r.order[chatID] = append(symbols[:i], symbols[i+1:]...)
			break
		}
	}
	return level
}

// List returns copies of the chat's levels in the order they were first added.
func (r *Registry) List(chatID int64) []types.TargetLevel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chatLevels, ok := r.levels[chatID]
	if !ok {
		return nil
	}

	out := make([]types.TargetLevel, 0, len(chatLevels))
	for _, symbol := range r.order[chatID] {
		if level, ok := chatLevels[symbol]; ok {
			out = append(out, *level)
		}
	}
	return out
}

// SnapshotAll returns a point-in-time copy of every level in the registry.
// The caller may iterate it while the registry is concurrently mutated; the
// snapshot never changes underneath it.
func (r *Registry) SnapshotAll() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for chatID, chatLevels := range r.levels {
		for _, level := range chatLevels {
			out = append(out, Entry{ChatID: chatID, Level: *level})
		}
	}
	return out
}

// PopIf atomically removes the level for (chatID, symbol) when predicate
// accepts currentPrice. It returns nil when the level is already gone or the
// predicate declines. A non-nil return is an exclusive claim: no other caller
// can pop the same level again.
func (r *Registry) PopIf(chatID int64, symbol string, predicate func(currentPrice float64) bool, currentPrice float64) *types.TargetLevel {
	symbol = normalizeSymbol(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	chatLevels, ok := r.levels[chatID]
	if !ok {
		return nil
	}
	if _, ok := chatLevels[symbol]; !ok {
		return nil
	}
	if !predicate(currentPrice) {
		return nil
	}
	return r.removeLocked(chatID, symbol)
}

// Count returns the total number of levels across all chats.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, chatLevels := range r.levels {
		total += len(chatLevels)
	}
	return total
}
