package usecase

import (
	"context"
	"sync"
	"time"

	"SigPulse/internal/domain/models"
	domrepo "SigPulse/internal/domain/repository"
	domsvc "SigPulse/internal/domain/service"
	applogger "SigPulse/pkg/logger"
	"SigPulse/pkg/queue"
)

// NotifierOptions tunes delivery throttling. Zero values fall back to defaults.
type NotifierOptions struct {
	Cooldown     time.Duration
	HistoryLimit int
}

// NotificationRecord is one archived delivery attempt.
type NotificationRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Symbol    string            `json:"symbol"`
	Kind      models.SignalKind `json:"signal_type"`
	Priority  string            `json:"priority"`
}

// ChannelHealth is one channel's connectivity probe result.
type ChannelHealth struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// ConnectionsReport aggregates channel probes. Overall is healthy as long
// as at least one channel responds.
type ConnectionsReport struct {
	Channels map[string]ChannelHealth `json:"channels"`
	Overall  string                   `json:"overall_status"`
}

// SymbolCooldown reports one active notification cooldown.
type SymbolCooldown struct {
	Symbol           string `json:"symbol"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// NotifierStatus is the full notification system view.
type NotifierStatus struct {
	Connections     ConnectionsReport    `json:"connections"`
	ActiveCooldowns []SymbolCooldown     `json:"active_cooldowns"`
	Recent          []NotificationRecord `json:"recent_notifications"`
	Total           int                  `json:"total_notifications"`
	CooldownSeconds int                  `json:"cooldown_period_seconds"`
}

// Notifier fans alerts out to every configured channel, throttles repeat
// deliveries per symbol and hands failed sends to the retry queue. Alerted
// assessments also go to the message bus for downstream consumers.
type Notifier struct {
	channels  []domsvc.AlertChannel
	publisher domrepo.AlertPublisher
	jobs      queue.QueueService
	logger    *applogger.Logger
	metrics   domrepo.Metrics

	cooldown     time.Duration
	historyLimit int

	mu        sync.Mutex
	cooldowns map[string]time.Time
	history   []NotificationRecord

	now func() time.Time
}

func NewNotifier(channels []domsvc.AlertChannel, publisher domrepo.AlertPublisher, jobs queue.QueueService, logger *applogger.Logger, metrics domrepo.Metrics, opts NotifierOptions) *Notifier {
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Minute
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	return &Notifier{
		channels:     channels,
		publisher:    publisher,
		jobs:         jobs,
		logger:       logger,
		metrics:      metrics,
		cooldown:     opts.Cooldown,
		historyLimit: opts.HistoryLimit,
		cooldowns:    make(map[string]time.Time),
		now:          time.Now,
	}
}

// Dispatch delivers an assessment to every channel. A symbol inside the
// notification cooldown is skipped on all channels. The cooldown and the
// history record are written after the attempt regardless of outcome.
func (n *Notifier) Dispatch(ctx context.Context, a *models.SignalAssessment) (map[string]models.DeliveryResult, error) {
	results := make(map[string]models.DeliveryResult, len(n.channels))
	if n.inCooldown(a.Symbol) {
		for _, ch := range n.channels {
			results[ch.Name()] = models.DeliveryResult{Reason: "cooldown"}
		}
		return results, nil
	}

	for _, ch := range n.channels {
		if err := ch.SendSignal(ctx, a); err != nil {
			if n.logger != nil {
				n.logger.Error("channel delivery failed",
					applogger.String("channel", ch.Name()),
					applogger.String("symbol", a.Symbol),
					applogger.Error(err),
				)
			}
			if n.metrics != nil {
				n.metrics.RecordError("notify_" + ch.Name())
			}
			n.enqueueRetry(ctx, ch.Name(), a)
			results[ch.Name()] = models.DeliveryResult{Reason: "failed"}
			continue
		}
		results[ch.Name()] = models.DeliveryResult{Sent: true, Reason: "success"}
	}

	n.recordDelivery(a)
	n.publishEvent(ctx, a)
	return results, nil
}

// SendTest pushes a plain text message through every channel.
func (n *Notifier) SendTest(ctx context.Context, message string) map[string]models.DeliveryResult {
	results := make(map[string]models.DeliveryResult, len(n.channels))
	for _, ch := range n.channels {
		if err := ch.SendText(ctx, message); err != nil {
			results[ch.Name()] = models.DeliveryResult{Reason: "failed"}
			continue
		}
		results[ch.Name()] = models.DeliveryResult{Sent: true, Reason: "success"}
	}
	return results
}

// TestConnections probes every channel.
func (n *Notifier) TestConnections(ctx context.Context) ConnectionsReport {
	report := ConnectionsReport{
		Channels: make(map[string]ChannelHealth, len(n.channels)),
		Overall:  "unhealthy",
	}
	for _, ch := range n.channels {
		if err := ch.Health(ctx); err != nil {
			report.Channels[ch.Name()] = ChannelHealth{Error: err.Error()}
			continue
		}
		report.Channels[ch.Name()] = ChannelHealth{Healthy: true}
		report.Overall = "healthy"
	}
	return report
}

// Status reports channel connectivity, active cooldowns and recent history.
func (n *Notifier) Status(ctx context.Context, recentCount int) NotifierStatus {
	if recentCount <= 0 {
		recentCount = 10
	}
	connections := n.TestConnections(ctx)

	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	cooldowns := make([]SymbolCooldown, 0, len(n.cooldowns))
	for symbol, until := range n.cooldowns {
		if now.Before(until) {
			cooldowns = append(cooldowns, SymbolCooldown{
				Symbol:           symbol,
				RemainingSeconds: int(until.Sub(now).Seconds()),
			})
		}
	}

	recent := n.history
	if len(recent) > recentCount {
		recent = recent[len(recent)-recentCount:]
	}
	out := make([]NotificationRecord, len(recent))
	copy(out, recent)

	return NotifierStatus{
		Connections:     connections,
		ActiveCooldowns: cooldowns,
		Recent:          out,
		Total:           len(n.history),
		CooldownSeconds: int(n.cooldown.Seconds()),
	}
}

// ClearCooldown removes the notification cooldown for a symbol.
func (n *Notifier) ClearCooldown(symbol string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.cooldowns[symbol]; !ok {
		return false
	}
	delete(n.cooldowns, symbol)
	return true
}

func (n *Notifier) inCooldown(symbol string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	until, ok := n.cooldowns[symbol]
	if !ok {
		return false
	}
	return n.now().Before(until)
}

func (n *Notifier) recordDelivery(a *models.SignalAssessment) {
	priority := "normal"
	if a.Kind == models.SignalConfirmed {
		priority = "high"
	}
	rec := NotificationRecord{
		Timestamp: n.now(),
		Symbol:    a.Symbol,
		Kind:      a.Kind,
		Priority:  priority,
	}

	n.mu.Lock()
	n.history = append(n.history, rec)
	if len(n.history) > n.historyLimit {
		n.history = n.history[len(n.history)-n.historyLimit:]
	}
	n.cooldowns[a.Symbol] = n.now().Add(n.cooldown)
	n.mu.Unlock()
}

func (n *Notifier) publishEvent(ctx context.Context, a *models.SignalAssessment) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.Publish(ctx, a); err != nil {
		if n.logger != nil {
			n.logger.Error("alert event publish failed",
				applogger.String("symbol", a.Symbol),
				applogger.Error(err),
			)
		}
		if n.metrics != nil {
			n.metrics.RecordError("alert_publish")
		}
	}
}

func (n *Notifier) enqueueRetry(ctx context.Context, channel string, a *models.SignalAssessment) {
	if n.jobs == nil {
		return
	}
	payload := AlertDeliveryPayload{Channel: channel, Assessment: *a}
	if err := n.jobs.PublishMessage(ctx, AlertDeliveryMsgType, payload); err != nil && n.logger != nil {
		n.logger.Error("retry enqueue failed",
			applogger.String("channel", channel),
			applogger.String("symbol", a.Symbol),
			applogger.Error(err),
		)
	}
}

var _ domsvc.AlertDispatcher = (*Notifier)(nil)
