package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"SigPulse/internal/domain/models"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	calls int
	fail  bool
	err   error
	last  *models.SignalAssessment
}

func (f *fakeDispatcher) Dispatch(_ context.Context, a *models.SignalAssessment) (map[string]models.DeliveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = a
	if f.err != nil {
		return nil, f.err
	}
	if f.fail {
		return map[string]models.DeliveryResult{
			"telegram": {Sent: false, Reason: "failed"},
			"webhook":  {Sent: false, Reason: "failed"},
		}, nil
	}
	return map[string]models.DeliveryResult{
		"telegram": {Sent: true, Reason: "success"},
		"webhook":  {Sent: true, Reason: "success"},
	}, nil
}

func assess(kind models.SignalKind, dir models.Direction, strength float64, confidence int) *models.SignalAssessment {
	return &models.SignalAssessment{
		Symbol:        "BTCUSDT",
		Kind:          kind,
		Direction:     dir,
		Strength:      strength,
		Confidence:    confidence,
		Price:         65000,
		Timestamp:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Confirmations: 1,
	}
}

func newTestTracker(d *fakeDispatcher) *AlertTracker {
	return NewAlertTracker(d, nil, nil, TrackerOptions{})
}

func TestProcessRejectsInvalid(t *testing.T) {
	d := &fakeDispatcher{}
	tr := newTestTracker(d)

	cases := []*models.SignalAssessment{
		nil,
		assess("bogus", models.DirectionLong, 0.8, 3),
		assess(models.SignalBase, models.DirectionNone, 0.8, 3),
		assess(models.SignalBase, models.DirectionLong, 1.5, 3),
		assess(models.SignalBase, models.DirectionLong, 0.8, 6),
	}
	for i, a := range cases {
		v := tr.Process(context.Background(), "BTCUSDT", a)
		if v.Processed || v.AlertSent || v.Reason != models.ReasonInvalidSignal {
			t.Fatalf("case %d: expected invalid_signal_data, got %+v", i, v)
		}
	}
	if d.calls != 0 {
		t.Fatalf("invalid assessments must not dispatch")
	}
}

func TestProcessInsufficientStrength(t *testing.T) {
	d := &fakeDispatcher{}
	tr := newTestTracker(d)

	v := tr.Process(context.Background(), "BTCUSDT", assess(models.SignalBase, models.DirectionLong, 0.5, 2))
	if v.Processed || v.AlertSent || v.Reason != models.ReasonInsufficientStrength {
		t.Fatalf("expected insufficient_strength, got %+v", v)
	}
	if d.calls != 0 {
		t.Fatalf("weak signals must not dispatch")
	}
}

func TestProcessNewSignalSetsCooldown(t *testing.T) {
	d := &fakeDispatcher{}
	tr := newTestTracker(d)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	v := tr.Process(context.Background(), "BTCUSDT", assess(models.SignalConfirmed, models.DirectionLong, 0.85, 4))
	if !v.Processed || !v.AlertSent || v.Reason != models.ReasonNewSignal {
		t.Fatalf("expected dispatched new_signal, got %+v", v)
	}
	if d.calls != 1 {
		t.Fatalf("expected one dispatch, got %d", d.calls)
	}

	status := tr.Status("BTCUSDT")
	if status.Active == nil || status.Active.Kind != models.SignalConfirmed {
		t.Fatalf("active signal not recorded: %+v", status)
	}
	if status.Cooldown == nil || !status.InCooldown {
		t.Fatalf("cooldown not set: %+v", status)
	}
	if got := status.Cooldown.EndTime.Sub(now); got != time.Hour {
		t.Fatalf("confirmed cooldown should last 60 minutes, got %v", got)
	}
}

func TestProcessBaseCooldownDuration(t *testing.T) {
	d := &fakeDispatcher{}
	tr := newTestTracker(d)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	tr.Process(context.Background(), "BTCUSDT", assess(models.SignalBase, models.DirectionLong, 0.75, 2))
	status := tr.Status("BTCUSDT")
	if status.Cooldown == nil {
		t.Fatalf("cooldown not set")
	}
	if got := status.Cooldown.EndTime.Sub(now); got != 30*time.Minute {
		t.Fatalf("base cooldown should last 30 minutes, got %v", got)
	}
}

func TestProcessCooldownSuppressesAndReportsRemaining(t *testing.T) {
	d := &fakeDispatcher{}
	tr := newTestTracker(d)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	tr.Process(context.Background(), "BTCUSDT", assess(models.SignalConfirmed, models.DirectionLong, 0.85, 4))

	// 11 minutes into a 60 minute cooldown leaves 49 minutes
	now = now.Add(11 * time.Minute)
	v := tr.Process(context.Background(), "BTCUSDT", assess(models.SignalConfirmed, models.DirectionShort, 0.9, 5))
	if !v.Processed || v.AlertSent || v.Reason != models.ReasonCooldown {
		t.Fatalf("expected cooldown verdict, got %+v", v)
	}
	if v.CooldownRemaining != 2940 {
		t.Fatalf("expected 2940 seconds remaining, got %d", v.CooldownRemaining)
	}
	if d.calls != 1 {
		t.Fatalf("cooldown must suppress dispatch, got %d calls", d.calls)
	}
}

func TestProcessCooldownExpiryAllowsNextAlert(t *testing.T) {
	d := &fakeDispatcher{}
	tr := newTestTracker(d)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	tr.Process(context.Background(), "BTCUSDT", assess(models.SignalBase, models.DirectionLong, 0.75, 2))

	now = now.Add(31 * time.Minute)
	v := tr.Process(context.Background(), "BTCUSDT", assess(models.SignalBase, models.DirectionShort, 0.8, 3))
	if !v.AlertSent || v.Reason != models.ReasonSignalUpdate {
		t.Fatalf("expected dispatched update after expiry, got %+v", v)
	}
	if d.calls != 2 {
		t.Fatalf("expected two dispatches, got %d", d.calls)
	}
}

func TestProcessNoChangeSuppressed(t *testing.T) {
	d := &fakeDispatcher{}
	tr := newTestTracker(d)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	first := assess(models.SignalConfirmed, models.DirectionLong, 0.85, 4)
	tr.Process(context.Background(), "BTCUSDT", first)
	tr.ClearCooldown("BTCUSDT")

	// Same kind, direction, confidence and a strength inside the 0.1 delta.
	repeat := assess(models.SignalConfirmed, models.DirectionLong, 0.90, 4)
	v := tr.Process(context.Background(), "BTCUSDT", repeat)
	if !v.Processed || v.AlertSent || v.Reason != models.ReasonNoChange {
		t.Fatalf("expected suppressed no_change, got %+v", v)
	}
	if d.calls != 1 {
		t.Fatalf("no_change must not dispatch, got %d calls", d.calls)
	}

	// A strength moving beyond the delta reopens the alert.
	changed := assess(models.SignalConfirmed, models.DirectionLong, 0.97, 4)
	v = tr.Process(context.Background(), "BTCUSDT", changed)
	if !v.AlertSent || v.Reason != models.ReasonSignalUpdate {
		t.Fatalf("expected signal_update, got %+v", v)
	}
}

func TestProcessDispatchFailureSkipsCooldown(t *testing.T) {
	d := &fakeDispatcher{fail: true}
	tr := newTestTracker(d)

	v := tr.Process(context.Background(), "BTCUSDT", assess(models.SignalConfirmed, models.DirectionLong, 0.85, 4))
	if !v.Processed || v.AlertSent || v.Reason != models.ReasonDispatchFailed {
		t.Fatalf("expected dispatch_failed, got %+v", v)
	}
	status := tr.Status("BTCUSDT")
	if status.Cooldown != nil || status.Active != nil {
		t.Fatalf("failed dispatch must not mutate state: %+v", status)
	}

	// The next pass retries the dispatch instead of being cooled down.
	d.fail = false
	v = tr.Process(context.Background(), "BTCUSDT", assess(models.SignalConfirmed, models.DirectionLong, 0.85, 4))
	if !v.AlertSent {
		t.Fatalf("expected retry to succeed, got %+v", v)
	}
	if d.calls != 2 {
		t.Fatalf("expected two dispatch attempts, got %d", d.calls)
	}
}

func TestHistoryBounded(t *testing.T) {
	d := &fakeDispatcher{}
	tr := newTestTracker(d)

	for i := 0; i < 1500; i++ {
		symbol := fmt.Sprintf("SYM%dUSDT", i)
		a := assess(models.SignalConfirmed, models.DirectionLong, 0.85, 4)
		a.Symbol = symbol
		v := tr.Process(context.Background(), symbol, a)
		if !v.AlertSent {
			t.Fatalf("alert %d suppressed: %+v", i, v)
		}
	}

	all := tr.History("", 0)
	if len(all) != 1000 {
		t.Fatalf("expected history capped at 1000, got %d", len(all))
	}
	// Oldest entries are evicted first.
	if all[0].Symbol != "SYM500USDT" {
		t.Fatalf("unexpected oldest record %s", all[0].Symbol)
	}
	if all[len(all)-1].Symbol != "SYM1499USDT" {
		t.Fatalf("unexpected newest record %s", all[len(all)-1].Symbol)
	}
}

func TestHistoryFilterAndLimit(t *testing.T) {
	d := &fakeDispatcher{}
	tr := newTestTracker(d)

	for _, symbol := range []string{"BTCUSDT", "ETHUSDT", "BTCUSDT"} {
		a := assess(models.SignalConfirmed, models.DirectionLong, 0.85, 4)
		a.Symbol = symbol
		tr.Process(context.Background(), symbol, a)
		tr.ClearAllCooldowns()
	}

	btc := tr.History("BTCUSDT", 50)
	if len(btc) != 2 {
		t.Fatalf("expected 2 BTC records, got %d", len(btc))
	}
	for _, r := range btc {
		if r.Symbol != "BTCUSDT" {
			t.Fatalf("filter leaked %s", r.Symbol)
		}
	}

	limited := tr.History("", 1)
	if len(limited) != 1 || limited[0].Symbol != "BTCUSDT" {
		t.Fatalf("expected newest record only, got %+v", limited)
	}
}

func TestHistoryRecordsSuppressedOutcomes(t *testing.T) {
	d := &fakeDispatcher{}
	tr := newTestTracker(d)

	a := assess(models.SignalConfirmed, models.DirectionLong, 0.85, 4)
	tr.Process(context.Background(), "BTCUSDT", a)
	tr.ClearCooldown("BTCUSDT")
	tr.Process(context.Background(), "BTCUSDT", a)

	records := tr.History("BTCUSDT", 0)
	if len(records) != 2 {
		t.Fatalf("expected both outcomes recorded, got %d", len(records))
	}
	if records[0].Outcome != models.ReasonNewSignal || !records[0].AlertSent {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].Outcome != models.ReasonNoChange || records[1].AlertSent {
		t.Fatalf("unexpected second record %+v", records[1])
	}
}

func TestClearCooldowns(t *testing.T) {
	d := &fakeDispatcher{}
	tr := newTestTracker(d)

	for _, symbol := range []string{"BTCUSDT", "ETHUSDT"} {
		a := assess(models.SignalConfirmed, models.DirectionLong, 0.85, 4)
		a.Symbol = symbol
		tr.Process(context.Background(), symbol, a)
	}

	if !tr.ClearCooldown("BTCUSDT") {
		t.Fatalf("expected cooldown cleared")
	}
	if tr.ClearCooldown("BTCUSDT") {
		t.Fatalf("second clear should report nothing to do")
	}
	if got := tr.ClearAllCooldowns(); got != 1 {
		t.Fatalf("expected 1 remaining cooldown cleared, got %d", got)
	}

	all := tr.StatusAll()
	if all.TotalInCooldown != 0 || len(all.Cooldowns) != 0 {
		t.Fatalf("cooldowns remain after clearing: %+v", all)
	}
	if all.TotalActive != 2 {
		t.Fatalf("active signals should survive cooldown clearing, got %d", all.TotalActive)
	}
}
