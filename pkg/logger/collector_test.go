package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) all() []AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []AggregatedLogEntry
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func TestCollectorDeduplicatesRepeats(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "logs",
		Publisher:      pub,
	})

	for i := 0; i < 5; i++ {
		c.AddLog("error", "stream closed", map[string]interface{}{"symbol": "BTCUSDT"}, "stream.go:42")
	}
	c.AddLog("error", "stream closed", map[string]interface{}{"symbol": "ETHUSDT"}, "stream.go:42")
	c.Close()

	got := pub.all()
	if len(got) != 2 {
		t.Fatalf("want 2 unique entries, got %d", len(got))
	}
	counts := map[string]int{}
	for _, e := range got {
		counts[e.Fields["symbol"].(string)] = e.Count
	}
	if counts["BTCUSDT"] != 5 || counts["ETHUSDT"] != 1 {
		t.Fatalf("wrong counts: %v", counts)
	}
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 3,
		Topic:          "logs",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("error", "a", nil, "x")
	c.AddLog("error", "b", nil, "x")
	c.AddLog("error", "c", nil, "x")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(pub.all()) == 3 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("threshold flush never arrived, got %d entries", len(pub.all()))
}
