package repository

import (
	"context"
	"sort"
	"sync"

	"SigPulse/internal/domain/models"
	"SigPulse/internal/domain/repository"
	applogger "SigPulse/pkg/logger"
)

// MemoryCandleStore keeps the rolling per-symbol bar window the analyzer
// reads. Bars dedupe on open time, so streamed updates refresh the live
// bar in place instead of growing the series.
type MemoryCandleStore struct {
	mu    sync.RWMutex
	bySym map[string][]models.Candle
	limit int
	l     *applogger.Logger
}

// NewMemoryCandleStore creates a store that retains at most limit bars per symbol.
func NewMemoryCandleStore(limit int) *MemoryCandleStore {
	if limit <= 0 {
		limit = 200
	}
	return &MemoryCandleStore{bySym: make(map[string][]models.Candle), limit: limit}
}

// SetLogger attaches an optional logger.
func (s *MemoryCandleStore) SetLogger(l *applogger.Logger) { s.l = l }

// Append merges bars into their symbol series and returns how many were
// accepted. Series stay sorted ascending by open time.
func (s *MemoryCandleStore) Append(ctx context.Context, candles ...models.Candle) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := 0
	for _, c := range candles {
		if c.Symbol == "" || c.OpenTime.IsZero() {
			continue
		}
		series := s.bySym[c.Symbol]
		idx := sort.Search(len(series), func(i int) bool {
			return !series[i].OpenTime.Before(c.OpenTime)
		})
		switch {
		case idx < len(series) && series[idx].OpenTime.Equal(c.OpenTime):
			series[idx] = c
		case idx == len(series):
			series = append(series, c)
		default:
			series = append(series, models.Candle{})
			copy(series[idx+1:], series[idx:])
			series[idx] = c
		}
		if len(series) > s.limit {
			series = series[len(series)-s.limit:]
		}
		s.bySym[c.Symbol] = series
		accepted++
	}

	if accepted > 0 && s.l != nil {
		s.l.Debug("candles stored", applogger.Int("count", accepted))
	}
	return accepted
}

// Latest returns a copy of the most recent n bars for a symbol, oldest
// first. n <= 0 returns the whole series.
func (s *MemoryCandleStore) Latest(ctx context.Context, symbol string, n int) []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.bySym[symbol]
	if len(series) == 0 {
		return nil
	}
	if n > 0 && len(series) > n {
		series = series[len(series)-n:]
	}
	out := make([]models.Candle, len(series))
	copy(out, series)
	return out
}

// Symbols lists the symbols with stored bars, sorted.
func (s *MemoryCandleStore) Symbols(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.bySym))
	for sym := range s.bySym {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len reports how many bars a symbol currently holds.
func (s *MemoryCandleStore) Len(ctx context.Context, symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySym[symbol])
}

var _ repository.CandleStore = (*MemoryCandleStore)(nil)
