package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes every message of one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads registered topics into a bounded channel drained by a
// worker pool. Per-partition locks keep handling ordered within a
// partition even with multiple workers. Offsets are committed only
// after a message has been handled or dead-lettered, never at fetch
// time.
type Consumer struct {
	cfg  *ConsumerConfig
	hook ConsumerHook

	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler

	inbox    chan *inbound
	dlq      *kafka.Writer
	stopChan chan struct{}
	stopOnce sync.Once
	readerWg sync.WaitGroup
	workerWg sync.WaitGroup

	plMu      sync.Mutex
	partLocks map[string]map[int]*sync.Mutex
}

// inbound carries one fetched message from a read loop to a worker.
type inbound struct {
	topic   string
	payload []byte
	raw     kafka.Message
}

// NewConsumer builds a stopped consumer. RegisterHandler then Start
// bring it up.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.normalize()
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	c := &Consumer{
		cfg:       cfg,
		hook:      NoopHook{},
		readers:   make(map[string]*kafka.Reader),
		handlers:  make(map[string]MessageHandler),
		inbox:     make(chan *inbound, cfg.BufferSize),
		stopChan:  make(chan struct{}),
		partLocks: make(map[string]map[int]*sync.Mutex),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	consumerMetricsInit()
	return c, nil
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler binds a handler to its topic. Call before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		log.Printf("kafka consumer: duplicate handler for topic %s ignored", topic)
		return
	}
	c.handlers[topic] = handler
}

// Start creates one reader per registered topic and launches the pool.
func (c *Consumer) Start() error {
	for topic := range c.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: c.startOffset(),
		})
		c.readers[topic] = reader
		log.Printf("kafka consumer: registered topic=%s", topic)
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workerWg.Add(1)
		go c.worker()
	}

	for topic, reader := range c.readers {
		c.readerWg.Add(1)
		go c.readLoop(topic, reader)
	}

	log.Printf("kafka consumer: started workers=%d topics=%d", c.cfg.WorkerCount, len(c.readers))
	return nil
}

// startOffset applies only to consumer groups without committed offsets.
func (c *Consumer) startOffset() int64 {
	if c.cfg.AutoOffsetReset == "latest" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

// Stop drains the consumer: readers first, then the worker pool, then
// the underlying connections.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		log.Println("kafka consumer: stop requested")

		close(c.stopChan)
		stopErr = awaitGroup(ctx, &c.readerWg)
		if stopErr == nil {
			// No reader can enqueue anymore, so closing the inbox lets
			// the workers drain it and exit.
			close(c.inbox)
			stopErr = awaitGroup(ctx, &c.workerWg)
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				log.Printf("kafka consumer: close reader %s: %v", topic, err)
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Printf("kafka consumer: close dlq writer: %v", err)
			}
		}

		if stopErr == nil {
			log.Println("kafka consumer: stopped")
		}
	})

	return stopErr
}

func awaitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	case <-done:
		return nil
	}
}

// readLoop fetches without committing. The commit happens in handle
// once the message outcome is known.
func (c *Consumer) readLoop(topic string, reader *kafka.Reader) {
	defer c.readerWg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := reader.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Printf("error fetching message from topic %s: %v", topic, err)
			}
			continue
		}

		if !c.enqueue(topic, msg) {
			return
		}
	}
}

// enqueue hands a message to the worker pool, blocking with adaptive
// backoff rather than dropping. Returns false when stopping.
func (c *Consumer) enqueue(topic string, msg kafka.Message) bool {
	for {
		select {
		case c.inbox <- &inbound{topic: topic, payload: msg.Value, raw: msg}:
			cm.queueGauges(topic, len(c.inbox), cap(c.inbox))
			return true
		case <-c.stopChan:
			return false
		default:
			if cm.queueGauges(topic, len(c.inbox), cap(c.inbox)) > 0.8 {
				time.Sleep(10 * time.Millisecond)
			} else {
				runtime.Gosched()
			}
		}
	}
}

func (c *Consumer) worker() {
	defer c.workerWg.Done()

	for msg := range c.inbox {
		handler, exists := c.handlers[msg.topic]
		if !exists {
			continue
		}
		c.handle(handler, msg)
	}
}

// handle runs one message through the handler with retries, then commits
// or dead-letters it. Handler panics are contained here so a bad message
// cannot take down a worker.
func (c *Consumer) handle(handler MessageHandler, msg *inbound) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic in message handler for topic %s: %v", msg.topic, r)
		}
	}()

	// Max in-flight is one per (topic, partition).
	pl := c.partitionLock(msg.topic, msg.raw.Partition)
	pl.Lock()
	defer pl.Unlock()

	var err error
	attempts := 0
	for {
		attempts++
		hctx, hdata, berr := c.hook.BeforeHandle(context.Background(), msg.topic, msg.raw, msg.payload)
		if berr != nil {
			err = berr
			break
		}

		err = handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, msg.topic, msg.raw, hdata, err)
		if err == nil || attempts > c.cfg.RetryMax {
			break
		}
		c.hook.OnError(hctx, msg.topic, msg.raw, hdata, err)
		wait := backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)
		select {
		case <-time.After(wait):
		case <-c.stopChan:
			return
		}
	}

	if err != nil {
		c.hook.OnError(context.Background(), msg.topic, msg.raw, msg.payload, err)
		log.Printf("kafka consumer: giving up on %s message after %d attempts: %v", msg.topic, attempts-1, err)
		c.deadLetter(msg)
	}

	// Commit on success, or after DLQ so a poison message cannot loop.
	if err == nil || c.dlqReady() {
		if reader := c.readers[msg.topic]; reader != nil {
			_ = c.commitWithRetry(reader, msg.raw, 3)
		}
	}

	cm.observeHandle(msg.topic, time.Since(start))
}

func (c *Consumer) dlqReady() bool { return c.dlq != nil && c.cfg.DLQTopic != "" }

// deadLetter forwards an exhausted message to the DLQ topic, if one is
// configured. The source topic travels in a header.
func (c *Consumer) deadLetter(msg *inbound) {
	if !c.dlqReady() {
		return
	}
	out := kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Value:   msg.payload,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(msg.topic)}},
	}
	if err := c.dlq.WriteMessages(context.Background(), out); err != nil {
		log.Printf("kafka consumer: dlq write for %s failed: %v", msg.topic, err)
	}
}

// commitWithRetry commits one offset, retrying transient failures.
func (c *Consumer) commitWithRetry(reader *kafka.Reader, km kafka.Message, tries int) error {
	if tries < 1 {
		tries = 1
	}
	var err error
	for attempt := 1; attempt <= tries; attempt++ {
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(cctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Printf("kafka consumer: commit for %s failed after %d attempts: %v", km.Topic, tries, err)
	return err
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.plMu.Lock()
	defer c.plMu.Unlock()

	m, ok := c.partLocks[topic]
	if !ok {
		m = make(map[int]*sync.Mutex)
		c.partLocks[topic] = m
	}
	l, ok := m[partition]
	if !ok {
		l = &sync.Mutex{}
		m[partition] = l
	}
	return l
}

// backoffWithJitter doubles the wait per attempt up to max, then
// subtracts up to half as jitter so retry storms spread out.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min < time.Millisecond {
		min = time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	jitter := time.Duration(rand.Int63n(int64(exp) / 2))
	return exp - jitter
}

type consumerMetrics struct {
	depth    *prometheus.GaugeVec
	fullness *prometheus.GaugeVec
	latency  *prometheus.HistogramVec
}

var (
	cmOnce sync.Once
	cm     *consumerMetrics
)

func consumerMetricsInit() {
	cmOnce.Do(func() {
		cm = &consumerMetrics{
			depth: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "sigpulse_kafka_consumer_queue_depth",
					Help: "Number of messages waiting in the consumer inbox",
				},
				[]string{"topic"},
			),
			fullness: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "sigpulse_kafka_consumer_queue_fullness",
					Help: "Inbox utilization ratio (len/cap)",
				},
				[]string{"topic"},
			),
			latency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "sigpulse_kafka_consumer_handle_seconds",
					Help:    "Handling time per message",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"topic"},
			),
		}
	})
}

// queueGauges records inbox depth and returns the fill ratio so the
// caller can decide whether to back off.
func (m *consumerMetrics) queueGauges(topic string, depth, capacity int) float64 {
	full := float64(depth) / float64(capacity)
	if m == nil {
		return full
	}
	m.depth.WithLabelValues(topic).Set(float64(depth))
	m.fullness.WithLabelValues(topic).Set(full)
	return full
}

func (m *consumerMetrics) observeHandle(topic string, dur time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(topic).Observe(dur.Seconds())
}
