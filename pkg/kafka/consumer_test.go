package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type topicHandler struct {
	topic string
	seen  [][]byte
}

func (h *topicHandler) Topic() string { return h.topic }

func (h *topicHandler) Handle(_ context.Context, data []byte) error {
	h.seen = append(h.seen, data)
	return nil
}

func newTestConsumer(t *testing.T, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{WithConsumerBrokers([]string{"localhost:9092"})}, opts...)
	c, err := NewConsumer(opts...)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return c
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(); err == nil {
		t.Fatal("expected an error without brokers")
	}
}

func TestConsumerConfigDefaults(t *testing.T) {
	cfg := &ConsumerConfig{}
	cfg.normalize()

	if cfg.GroupID != "default" || cfg.AutoOffsetReset != "earliest" {
		t.Fatalf("group defaults: %+v", cfg)
	}
	if cfg.WorkerCount != 1 || cfg.BufferSize != 10 {
		t.Fatalf("pool defaults: %+v", cfg)
	}
	if cfg.BackoffMin != 50*time.Millisecond || cfg.BackoffMax != 2*time.Second {
		t.Fatalf("backoff defaults: %+v", cfg)
	}
	if cfg.MinBytes != 1 || cfg.MaxBytes != 10<<20 {
		t.Fatalf("fetch defaults: %+v", cfg)
	}
}

func TestConsumerConfigBackoffWindowStaysOrdered(t *testing.T) {
	cfg := &ConsumerConfig{BackoffMin: 3 * time.Second, BackoffMax: time.Second}
	cfg.normalize()
	if cfg.BackoffMax != cfg.BackoffMin {
		t.Fatalf("max %v should be raised to min %v", cfg.BackoffMax, cfg.BackoffMin)
	}
}

func TestRegisterHandlerKeepsFirst(t *testing.T) {
	c := newTestConsumer(t)
	first := &topicHandler{topic: "candles"}
	c.RegisterHandler(first)
	c.RegisterHandler(&topicHandler{topic: "candles"})

	if c.handlers["candles"] != first {
		t.Fatal("duplicate registration should not replace the first handler")
	}
}

func TestStartOffsetMapping(t *testing.T) {
	c := newTestConsumer(t, WithConsumerAutoOffsetReset("latest"))
	if c.startOffset() != kafka.LastOffset {
		t.Fatal("latest should map to LastOffset")
	}

	c = newTestConsumer(t)
	if c.startOffset() != kafka.FirstOffset {
		t.Fatal("default should map to FirstOffset")
	}
}

func TestPartitionLockIdentity(t *testing.T) {
	c := newTestConsumer(t)

	a := c.partitionLock("candles", 0)
	if c.partitionLock("candles", 0) != a {
		t.Fatal("same topic and partition should share one lock")
	}
	if c.partitionLock("candles", 1) == a {
		t.Fatal("partitions should not share a lock")
	}
	if c.partitionLock("alerts", 0) == a {
		t.Fatal("topics should not share a lock")
	}
}

func TestBackoffWithJitterStaysInWindow(t *testing.T) {
	min, max := 50*time.Millisecond, 2*time.Second
	for attempt := 1; attempt <= 8; attempt++ {
		exp := min * time.Duration(1<<uint(attempt-1))
		if exp > max {
			exp = max
		}
		for i := 0; i < 20; i++ {
			got := backoffWithJitter(min, max, attempt)
			if got < exp/2 || got > exp {
				t.Fatalf("attempt %d: %v outside [%v, %v]", attempt, got, exp/2, exp)
			}
		}
	}
}

func TestHookFuncsZeroValueIsNoop(t *testing.T) {
	var h HookFuncs
	ctx := context.Background()
	msg := kafka.Message{Topic: "candles"}

	hctx, data, err := h.BeforeHandle(ctx, "candles", msg, []byte("x"))
	if err != nil || hctx != ctx || string(data) != "x" {
		t.Fatalf("zero-value BeforeHandle changed its inputs: %v %v %q", err, hctx, data)
	}
	h.AfterHandle(ctx, "candles", msg, nil, nil)
	h.OnError(ctx, "candles", msg, nil, nil)
}

func TestHookFuncsDispatch(t *testing.T) {
	var before, after, onErr int
	h := HookFuncs{
		Before: func(ctx context.Context, _ string, _ kafka.Message, data []byte) (context.Context, []byte, error) {
			before++
			return ctx, append(data, '!'), nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { after++ },
		Err:   func(context.Context, string, kafka.Message, []byte, error) { onErr++ },
	}

	_, data, err := h.BeforeHandle(context.Background(), "candles", kafka.Message{}, []byte("a"))
	if err != nil || string(data) != "a!" {
		t.Fatalf("BeforeHandle: %q %v", data, err)
	}
	h.AfterHandle(context.Background(), "candles", kafka.Message{}, nil, nil)
	h.OnError(context.Background(), "candles", kafka.Message{}, nil, nil)

	if before != 1 || after != 1 || onErr != 1 {
		t.Fatalf("dispatch counts: %d %d %d", before, after, onErr)
	}
}
