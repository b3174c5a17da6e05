package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"SigPulse/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a Redis-backed job queue. Failed jobs go to a sorted-set
// retry schedule and, after RetryLimit attempts, to a dead letter list.
type RedisQueue struct {
	logger *logger.Logger
	config *QueueConfig
	client *redis.Client

	mu        sync.RWMutex
	jobs      map[string]Job
	isRunning bool

	keyPrefix string

	wg     sync.WaitGroup
	stopCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// RedisQueueOption adjusts a RedisQueue before it starts.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix overrides the default sigpulse:queue key namespace.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(q *RedisQueue) { q.keyPrefix = prefix }
}

// NewRedisQueue wraps client in a job queue. A nil config gets working
// defaults.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	config.normalize()

	rq := &RedisQueue{
		client:    client,
		config:    config,
		logger:    lgr,
		keyPrefix: "sigpulse:queue",
		jobs:      make(map[string]Job),
		stopCh:    make(chan struct{}),
	}
	rq.ctx, rq.cancel = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob registers a job for one message type. Registration after
// Start is not supported.
func (q *RedisQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}

	q.jobs[job.Type()] = job
	q.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start pings Redis and launches the workers and the retry processor.
func (q *RedisQueue) Start() error {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	q.isRunning = true
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := q.client.Ping(ctx).Err(); err != nil {
		q.isRunning = false
		return fmt.Errorf("redis ping: %w", err)
	}

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.wg.Add(1)
	go q.retryProcessor()

	q.logger.Info("redis queue started",
		logger.Int("workers", q.config.Workers),
		logger.String("addr", q.client.Options().Addr))

	return nil
}

// Stop gracefully stops the queue.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.logger.Info("stopping redis queue...")
	q.cancel()
	close(q.stopCh)
	q.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-doneCh:
		q.logger.Info("redis queue stopped gracefully")
		return nil
	}
}

// PublishMessage enqueues a message (implements QueueService). When
// QueueSize is set the backlog is bounded and overflow is rejected.
func (q *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.isRunning {
		return fmt.Errorf("queue not running")
	}

	if _, exists := q.jobs[msgType]; !exists {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	if q.config.QueueSize > 0 {
		depth, err := q.client.LLen(ctx, q.queueKey()).Result()
		if err == nil && depth >= int64(q.config.QueueSize) {
			return fmt.Errorf("queue full: %d messages pending", depth)
		}
	}

	msg := Message{
		ID:        strconv.FormatInt(time.Now().UnixNano(), 10),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	msgData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := q.client.LPush(ctx, q.queueKey(), msgData).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}

	return nil
}

func (q *RedisQueue) worker(id int) {
	defer q.wg.Done()
	q.logger.Info("queue worker started", logger.Int("worker_id", id))

	key := q.queueKey()

	for {
		select {
		case <-q.stopCh:
			q.logger.Info("queue worker stopping", logger.Int("worker_id", id))
			return
		case <-q.ctx.Done():
			q.logger.Info("queue worker cancelled", logger.Int("worker_id", id))
			return
		default:
			q.popAndProcess(key)
		}
	}
}

func (q *RedisQueue) popAndProcess(key string) {
	ctx, cancel := context.WithTimeout(q.ctx, 1*time.Second)
	defer cancel()

	res, err := q.client.BRPop(ctx, 1*time.Second, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return
		}
		q.logger.Error("brpop error", logger.Error(err))
		time.Sleep(time.Second)
		return
	}

	// BRPop answers [key, value].
	if len(res) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		q.logger.Error("unmarshal message", logger.Error(err))
		return
	}

	q.dispatch(msg)
}

func (q *RedisQueue) dispatch(msg Message) {
	job, exists := q.jobs[msg.Type]
	if !exists {
		q.logger.Error("no job found",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	start := time.Now()
	err := job.Handle(q.ctx, rawPayload(msg.Payload))
	elapsed := time.Since(start)

	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		q.logger.Warn("message cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", elapsed.Milliseconds()))
		return
	}
	q.retryOrBury(msg, job, err)
}

// rawPayload re-encodes a payload decoded into a generic map so jobs can
// unmarshal it into their own type.
func rawPayload(payload interface{}) interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	b, err := json.Marshal(m)
	if err != nil {
		return payload
	}
	return json.RawMessage(b)
}

func (q *RedisQueue) retryOrBury(msg Message, job Job, err error) {
	q.logger.Error("message processing error",
		logger.String("id", msg.ID), logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1), logger.Error(err))

	if msg.Attempts >= q.config.RetryLimit {
		q.logger.Error("max retries reached",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		q.bury(msg)
		return
	}

	msg.Attempts++
	retryTime := time.Now().Add(q.config.RetryDelay)

	msgData, err := json.Marshal(msg)
	if err != nil {
		q.logger.Error("marshal retry", logger.Error(err))
		return
	}

	err = q.client.ZAdd(context.Background(), q.retryKey(), redis.Z{
		Score:  float64(retryTime.Unix()),
		Member: msgData,
	}).Err()
	if err != nil {
		q.logger.Error("zadd retry", logger.Error(err))
		return
	}

	q.logger.Info("scheduled retry",
		logger.String("id", msg.ID), logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", retryTime.Format(time.RFC3339)))
}

func (q *RedisQueue) bury(msg Message) {
	msgData, err := json.Marshal(msg)
	if err != nil {
		q.logger.Error("marshal dlq", logger.Error(err))
		return
	}

	if err := q.client.LPush(context.Background(), q.deadLetterKey(), msgData).Err(); err != nil {
		q.logger.Error("lpush dlq", logger.Error(err))
	}
}

// retryProcessor moves due retries back onto the main queue.
func (q *RedisQueue) retryProcessor() {
	defer q.wg.Done()
	q.logger.Info("retry processor started")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			q.logger.Info("retry processor stopping")
			return
		case <-q.ctx.Done():
			q.logger.Info("retry processor cancelled")
			return
		case <-ticker.C:
			q.requeueDue()
		}
	}
}

func (q *RedisQueue) requeueDue() {
	due := &redis.ZRangeBy{Min: "0", Max: strconv.FormatInt(time.Now().Unix(), 10)}
	res, err := q.client.ZRangeByScoreWithScores(q.ctx, q.retryKey(), due).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		q.logger.Error("fetch retry messages", logger.Error(err))
		return
	}

	for _, z := range res {
		select {
		case <-q.ctx.Done():
			return
		default:
		}

		msgData := z.Member.(string)

		pipe := q.client.TxPipeline()
		pipe.ZRem(q.ctx, q.retryKey(), msgData)
		pipe.LPush(q.ctx, q.queueKey(), msgData)

		if _, err := pipe.Exec(q.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			q.logger.Error("move retry to queue", logger.Error(err))
		}
	}
}

func (q *RedisQueue) queueKey() string      { return q.keyPrefix + ":messages" }
func (q *RedisQueue) retryKey() string      { return q.keyPrefix + ":retry" }
func (q *RedisQueue) deadLetterKey() string { return q.keyPrefix + ":dlq" }

var _ QueueService = (*RedisQueue)(nil)
