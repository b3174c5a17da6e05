package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"SigPulse/internal/domain/models"
	domrepo "SigPulse/internal/domain/repository"
	domsvc "SigPulse/internal/domain/service"
	applogger "SigPulse/pkg/logger"
)

// TrackerOptions tunes the alert gates. Zero values fall back to defaults.
type TrackerOptions struct {
	MinStrength       float64
	BaseCooldown      time.Duration
	ConfirmedCooldown time.Duration
	NoveltyDelta      float64
	HistoryLimit      int
}

// AlertTracker decides whether an assessment becomes an outbound alert.
// Decisions for one symbol are serialized; state is shared across symbols
// behind a separate lock so status queries never wait on a dispatch.
type AlertTracker struct {
	dispatcher domsvc.AlertDispatcher
	logger     *applogger.Logger
	metrics    domrepo.Metrics

	minStrength       float64
	baseCooldown      time.Duration
	confirmedCooldown time.Duration
	noveltyDelta      float64
	historyLimit      int

	mu       sync.Mutex
	symLocks map[string]*sync.Mutex

	stateMu   sync.Mutex
	active    map[string]models.ActiveSignal
	cooldowns map[string]models.CooldownEntry
	history   []models.HistoryRecord

	now func() time.Time
}

func NewAlertTracker(dispatcher domsvc.AlertDispatcher, logger *applogger.Logger, metrics domrepo.Metrics, opts TrackerOptions) *AlertTracker {
	if opts.MinStrength <= 0 {
		opts.MinStrength = 0.7
	}
	if opts.BaseCooldown <= 0 {
		opts.BaseCooldown = 30 * time.Minute
	}
	if opts.ConfirmedCooldown <= 0 {
		opts.ConfirmedCooldown = 60 * time.Minute
	}
	if opts.NoveltyDelta <= 0 {
		opts.NoveltyDelta = 0.1
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 1000
	}
	return &AlertTracker{
		dispatcher:        dispatcher,
		logger:            logger,
		metrics:           metrics,
		minStrength:       opts.MinStrength,
		baseCooldown:      opts.BaseCooldown,
		confirmedCooldown: opts.ConfirmedCooldown,
		noveltyDelta:      opts.NoveltyDelta,
		historyLimit:      opts.HistoryLimit,
		symLocks:          make(map[string]*sync.Mutex),
		active:            make(map[string]models.ActiveSignal),
		cooldowns:         make(map[string]models.CooldownEntry),
		now:               time.Now,
	}
}

// Process runs one assessment through the alert gates: validation, minimum
// strength, cooldown, novelty. Only a new or changed signal is dispatched,
// and only a successful dispatch sets the cooldown and updates active state.
func (t *AlertTracker) Process(ctx context.Context, symbol string, assessment *models.SignalAssessment) models.AlertVerdict {
	lock := t.lockFor(symbol)
	lock.Lock()
	defer lock.Unlock()

	if !validAssessment(assessment) {
		t.warn("rejected invalid assessment", symbol)
		return models.AlertVerdict{Reason: models.ReasonInvalidSignal}
	}

	if assessment.Strength < t.minStrength {
		return models.AlertVerdict{Reason: models.ReasonInsufficientStrength, Assessment: assessment}
	}

	if remaining, ok := t.cooldownRemaining(symbol); ok {
		return models.AlertVerdict{
			Processed:         true,
			Reason:            models.ReasonCooldown,
			Assessment:        assessment,
			CooldownRemaining: remaining,
		}
	}

	outcome := t.classifyNovelty(symbol, assessment)
	if outcome == models.ReasonNoChange {
		t.record(symbol, assessment, outcome, false, nil)
		return models.AlertVerdict{Processed: true, Reason: outcome, Assessment: assessment}
	}

	deliveries, err := t.dispatcher.Dispatch(ctx, assessment)
	sent := false
	for _, r := range deliveries {
		if r.Sent {
			sent = true
			break
		}
	}
	if err != nil || !sent {
		if t.logger != nil {
			t.logger.Error("alert dispatch failed",
				applogger.String("symbol", symbol),
				applogger.String("kind", string(assessment.Kind)),
				applogger.Error(err),
			)
		}
		if t.metrics != nil {
			t.metrics.RecordError("alert_dispatch")
		}
		t.record(symbol, assessment, models.ReasonDispatchFailed, false, deliveries)
		return models.AlertVerdict{Processed: true, Reason: models.ReasonDispatchFailed, Assessment: assessment}
	}

	t.setCooldown(symbol, assessment)
	t.updateActive(symbol, assessment)
	t.record(symbol, assessment, outcome, true, deliveries)
	if t.metrics != nil {
		for channel, r := range deliveries {
			if r.Sent {
				t.metrics.RecordAlert(channel, symbol)
			}
		}
	}
	if t.logger != nil {
		t.logger.Info("alert sent",
			applogger.String("symbol", symbol),
			applogger.String("kind", string(assessment.Kind)),
			applogger.String("direction", string(assessment.Direction)),
			applogger.String("outcome", outcome),
		)
	}
	return models.AlertVerdict{Processed: true, AlertSent: true, Reason: outcome, Assessment: assessment}
}

// Status reports the tracker view for one symbol. Expired cooldown entries
// are reported as not in cooldown but left in place.
func (t *AlertTracker) Status(symbol string) models.SymbolStatus {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	status := models.SymbolStatus{Symbol: symbol}
	if active, ok := t.active[symbol]; ok {
		status.Active = &active
	}
	if cooldown, ok := t.cooldowns[symbol]; ok {
		status.Cooldown = &cooldown
		status.InCooldown = t.now().Before(cooldown.EndTime)
	}
	return status
}

// StatusAll reports the tracker view across all symbols.
func (t *AlertTracker) StatusAll() models.TrackerStatus {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	status := models.TrackerStatus{
		Active:      make(map[string]models.ActiveSignal, len(t.active)),
		Cooldowns:   make(map[string]models.CooldownEntry, len(t.cooldowns)),
		TotalActive: len(t.active),
	}
	for symbol, active := range t.active {
		status.Active[symbol] = active
	}
	now := t.now()
	for symbol, cooldown := range t.cooldowns {
		status.Cooldowns[symbol] = cooldown
		if now.Before(cooldown.EndTime) {
			status.TotalInCooldown++
		}
	}
	return status
}

// History returns the most recent records, newest last, optionally filtered
// by symbol. A non-positive limit returns everything retained.
func (t *AlertTracker) History(symbol string, limit int) []models.HistoryRecord {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	records := t.history
	if symbol != "" {
		records = make([]models.HistoryRecord, 0, len(t.history))
		for _, r := range t.history {
			if r.Symbol == symbol {
				records = append(records, r)
			}
		}
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]models.HistoryRecord, len(records))
	copy(out, records)
	return out
}

// ClearCooldown removes the cooldown for a symbol and reports whether one
// was present.
func (t *AlertTracker) ClearCooldown(symbol string) bool {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if _, ok := t.cooldowns[symbol]; !ok {
		return false
	}
	delete(t.cooldowns, symbol)
	return true
}

// ClearAllCooldowns removes every cooldown and returns how many were cleared.
func (t *AlertTracker) ClearAllCooldowns() int {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	count := len(t.cooldowns)
	t.cooldowns = make(map[string]models.CooldownEntry)
	return count
}

func (t *AlertTracker) lockFor(symbol string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.symLocks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		t.symLocks[symbol] = lock
	}
	return lock
}

func validAssessment(a *models.SignalAssessment) bool {
	if a == nil {
		return false
	}
	switch a.Kind {
	case models.SignalNone, models.SignalBase, models.SignalConfirmed:
	default:
		return false
	}
	if a.Direction != models.DirectionLong && a.Direction != models.DirectionShort {
		return false
	}
	if a.Strength < 0 || a.Strength > 1 {
		return false
	}
	if a.Confidence < 0 || a.Confidence > 5 {
		return false
	}
	return true
}

// cooldownRemaining reports the active cooldown in whole seconds. Expired
// entries are removed on the way.
func (t *AlertTracker) cooldownRemaining(symbol string) (int, bool) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	entry, ok := t.cooldowns[symbol]
	if !ok {
		return 0, false
	}
	now := t.now()
	if !now.Before(entry.EndTime) {
		delete(t.cooldowns, symbol)
		return 0, false
	}
	return int(entry.EndTime.Sub(now).Seconds()), true
}

func (t *AlertTracker) classifyNovelty(symbol string, a *models.SignalAssessment) string {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	prev, ok := t.active[symbol]
	if !ok {
		return models.ReasonNewSignal
	}
	if prev.Kind != a.Kind ||
		prev.Direction != a.Direction ||
		math.Abs(prev.Strength-a.Strength) > t.noveltyDelta ||
		prev.Confidence != a.Confidence {
		return models.ReasonSignalUpdate
	}
	return models.ReasonNoChange
}

func (t *AlertTracker) setCooldown(symbol string, a *models.SignalAssessment) {
	d := t.baseCooldown
	if a.Kind == models.SignalConfirmed {
		d = t.confirmedCooldown
	}
	entry := models.CooldownEntry{
		EndTime:         t.now().Add(d),
		DurationMinutes: int(d.Minutes()),
		Kind:            a.Kind,
	}
	t.stateMu.Lock()
	t.cooldowns[symbol] = entry
	t.stateMu.Unlock()
}

func (t *AlertTracker) updateActive(symbol string, a *models.SignalAssessment) {
	t.stateMu.Lock()
	t.active[symbol] = models.ActiveSignal{
		Kind:          a.Kind,
		Direction:     a.Direction,
		Strength:      a.Strength,
		Confidence:    a.Confidence,
		Price:         a.Price,
		Confirmations: a.Confirmations,
		UpdatedAt:     t.now(),
	}
	t.stateMu.Unlock()
}

func (t *AlertTracker) record(symbol string, a *models.SignalAssessment, outcome string, sent bool, deliveries map[string]models.DeliveryResult) {
	rec := models.HistoryRecord{
		Timestamp:     t.now(),
		Symbol:        symbol,
		Kind:          a.Kind,
		Direction:     a.Direction,
		Strength:      a.Strength,
		Confidence:    a.Confidence,
		Price:         a.Price,
		Confirmations: a.Confirmations,
		Outcome:       outcome,
		AlertSent:     sent,
		Deliveries:    deliveries,
	}
	t.stateMu.Lock()
	t.history = append(t.history, rec)
	if len(t.history) > t.historyLimit {
		t.history = t.history[len(t.history)-t.historyLimit:]
	}
	t.stateMu.Unlock()
}

func (t *AlertTracker) warn(msg, symbol string) {
	if t.logger != nil {
		t.logger.Warn(msg, applogger.String("symbol", symbol))
	}
}
