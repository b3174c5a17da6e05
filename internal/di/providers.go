package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"SigPulse/internal/domain/repository"
	domsvc "SigPulse/internal/domain/service"
	"SigPulse/internal/handler/api"
	mid "SigPulse/internal/middleware"
	internalrepo "SigPulse/internal/repository"
	"SigPulse/internal/service/binance"
	icache "SigPulse/internal/service/cache"
	"SigPulse/internal/service/telegram"
	"SigPulse/internal/service/webhook"
	"SigPulse/internal/services/analytics"
	"SigPulse/internal/usecase"
	pkgcache "SigPulse/pkg/cache"
	"SigPulse/pkg/config"
	xhttp "SigPulse/pkg/http"
	pkgkafka "SigPulse/pkg/kafka"
	applogger "SigPulse/pkg/logger"
	"SigPulse/pkg/metrics"
	"SigPulse/pkg/queue"
	"SigPulse/pkg/server"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger. The level follows the
// environment; LOG_LEVEL overrides it for one deployment.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level, format := "info", "json"
	if cfg.Environment == "development" {
		level, format = "debug", "console"
	}
	if lv := os.Getenv("LOG_LEVEL"); lv != "" {
		level = lv
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCandleStore creates the in-memory candle store.
func ProvideCandleStore(cfg *config.Config, lgr *applogger.Logger) repository.CandleStore {
	// keep twice the fetch window so live bars do not evict fetched history
	store := internalrepo.NewMemoryCandleStore(cfg.Binance.CandleLimit * 2)
	store.SetLogger(lgr)
	return store
}

// ProvideRedisCache creates a Redis cache client, or nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideRedisClient exposes the underlying Redis connection for the queue.
func ProvideRedisClient(rc *pkgcache.RedisCache) *redis.Client {
	if rc == nil {
		return nil
	}
	return rc.Client()
}

// ProvideCandleFeed creates the Binance REST kline feed.
func ProvideCandleFeed(cfg *config.Config, rc *pkgcache.RedisCache, lgr *applogger.Logger) repository.CandleFeed {
	baseURL := cfg.Binance.RESTURL
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	var cacheSvc pkgcache.Service
	if rc != nil {
		cacheSvc = rc
	}
	return binance.New(baseURL, repository.NormalizeInterval(cfg.Binance.Interval), nil, cacheSvc, lgr)
}

// ProvideMarketStream creates the Binance WebSocket stream, or nil when disabled.
func ProvideMarketStream(cfg *config.Config) repository.MarketStream {
	if !cfg.Binance.StreamEnabled {
		return nil
	}
	wsURL := cfg.Binance.WebSocketURL
	if wsURL == "" {
		wsURL = "wss://stream.binance.com:9443/ws"
	}
	return binance.NewStream(
		wsURL,
		cfg.Binance.Symbols,
		repository.NormalizeInterval(cfg.Binance.Interval),
		cfg.Binance.ReconnectDelay,
		cfg.Binance.PingInterval,
	)
}

// ProvideMarketAnalyzer builds the detection engine from the analysis config.
func ProvideMarketAnalyzer(cfg *config.Config) domsvc.MarketAnalyzer {
	fast, slow := cfg.Analysis.FastEMA, cfg.Analysis.SlowEMA
	if fast <= 0 {
		fast = 9
	}
	if slow <= 0 {
		slow = 20
	}
	bos := cfg.Analysis.BOSLookback
	if bos <= 0 {
		bos = 5
	}
	choch := cfg.Analysis.CHOCHLookback
	if choch <= 0 {
		choch = 10
	}
	volThreshold := cfg.Analysis.VolumeThreshold
	if volThreshold <= 0 {
		volThreshold = 1.5
	}
	minStrength := cfg.Analysis.MinStrength
	if minStrength <= 0 {
		minStrength = 0.7
	}
	return analytics.NewEngine(
		analytics.NewEMACrossoverDetector(fast, slow),
		analytics.NewBOSDetector(bos, volThreshold),
		analytics.NewCHOCHDetector(choch, volThreshold),
		minStrength,
	)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	k := cfg.Kafka
	kp := k.Producer
	prod, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatchSize(kp.BatchSize),
		pkgkafka.WithBatchBytes(kp.BatchBytes),
		pkgkafka.WithBatchTimeout(kp.Linger),
		pkgkafka.WithTimeouts(kp.WriteTimeout, kp.ReadTimeout),
		pkgkafka.WithMaxAttempts(kp.MaxAttempts),
		pkgkafka.WithAsync(kp.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return prod, nil
}

// ProvideAlertPublisher creates the Kafka alert publisher, or nil without a producer.
func ProvideAlertPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.AlertPublisher {
	if producer == nil {
		return nil
	}
	topic := cfg.Kafka.AlertsTopic
	if topic == "" {
		topic = "sigpulse.alerts"
	}
	return internalrepo.NewKafkaAlertPublisher(producer, topic)
}

// ProvideAlertChannels builds the enabled notification channels.
func ProvideAlertChannels(cfg *config.Config, lgr *applogger.Logger) []domsvc.AlertChannel {
	channels := make([]domsvc.AlertChannel, 0, 2)
	if cfg.Notifications.Telegram.Enabled {
		channels = append(channels, telegram.New(
			cfg.Notifications.Telegram.APIURL,
			cfg.Notifications.Telegram.BotToken,
			cfg.Notifications.Telegram.ChatID,
			nil,
			lgr,
		))
	}
	if cfg.Notifications.Webhook.Enabled {
		channels = append(channels, webhook.New(cfg.Notifications.Webhook.URL, nil, lgr))
	}
	return channels
}

// ProvideJobQueue creates the redelivery queue, or nil when Redis is disabled.
func ProvideJobQueue(cfg *config.Config, client *redis.Client, lgr *applogger.Logger, channels []domsvc.AlertChannel) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	q := queue.NewRedisQueue(lgr, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client)
	q.RegisterJob(usecase.NewAlertDeliveryJob(channels, lgr))
	return q
}

// ProvideNotifier creates the notification dispatcher.
func ProvideNotifier(
	channels []domsvc.AlertChannel,
	publisher repository.AlertPublisher,
	jobs *queue.RedisQueue,
	lgr *applogger.Logger,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.Notifier {
	var jobsSvc queue.QueueService
	if jobs != nil {
		jobsSvc = jobs
	}
	return usecase.NewNotifier(channels, publisher, jobsSvc, lgr, m, usecase.NotifierOptions{
		Cooldown:     cfg.Notifications.Cooldown,
		HistoryLimit: cfg.Notifications.HistoryLimit,
	})
}

// ProvideAlertTracker creates the alert tracker use case.
func ProvideAlertTracker(notifier *usecase.Notifier, lgr *applogger.Logger, m repository.Metrics, cfg *config.Config) *usecase.AlertTracker {
	return usecase.NewAlertTracker(notifier, lgr, m, usecase.TrackerOptions{
		MinStrength:       cfg.Analysis.MinStrength,
		BaseCooldown:      cfg.Alerts.BaseCooldown,
		ConfirmedCooldown: cfg.Alerts.ConfirmedCooldown,
		NoveltyDelta:      cfg.Alerts.NoveltyDelta,
		HistoryLimit:      cfg.Alerts.HistoryLimit,
	})
}

// ProvideAnalyzer creates the symbol analyzer use case.
func ProvideAnalyzer(
	store repository.CandleStore,
	feed repository.CandleFeed,
	engine domsvc.MarketAnalyzer,
	tracker *usecase.AlertTracker,
	lgr *applogger.Logger,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.Analyzer {
	return usecase.NewAnalyzer(store, feed, engine, tracker, lgr, m, usecase.AnalyzerOptions{
		CandleLimit: cfg.Binance.CandleLimit,
		MinBars:     cfg.Binance.MinBars,
	})
}

// ProvideWatcher creates the periodic scan loop.
func ProvideWatcher(analyzer *usecase.Analyzer, cfg *config.Config, lgr *applogger.Logger) *usecase.Watcher {
	symbols := cfg.Binance.Symbols
	if len(symbols) == 0 {
		symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}
	}
	return usecase.NewWatcher(analyzer, symbols, cfg.Analysis.ScanInterval, lgr)
}

// ProvideCandleCollector creates the stream collector, or nil without a stream.
func ProvideCandleCollector(stream repository.MarketStream, store repository.CandleStore, m repository.Metrics) *usecase.CandleCollector {
	if stream == nil {
		return nil
	}
	sink := usecase.NewStoreSink(store)
	// Build middleware pipeline between WebSocket and the store
	pipe := mid.NewRealtimePipeline(sink, m,
		mid.WithMaxRPS(2),
		mid.WithBufferSize(1000),
	)
	return usecase.NewCandleCollector(stream, sink, m, pipe)
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	kc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(kc.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerBufferSize(kc.BufferSize),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
		pkgkafka.WithConsumerFetch(kc.MinBytes, kc.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCandleIngestHandler registers the handler for the candles topic.
func ProvideCandleIngestHandler(store repository.CandleStore, m repository.Metrics, cfg *config.Config) *usecase.CandleIngestHandler {
	topic := cfg.Kafka.CandlesTopic
	if topic == "" {
		topic = "sigpulse.candles"
	}
	return usecase.NewCandleIngestHandler(topic, store, m)
}

// ProvideHTTPHandler creates the alerts API handler with its response cache.
// The Redis-backed cache shares the pool already opened for pkg/cache.
func ProvideHTTPHandler(
	lgr *applogger.Logger,
	watcher *usecase.Watcher,
	analyzer *usecase.Analyzer,
	tracker *usecase.AlertTracker,
	notifier *usecase.Notifier,
	store repository.CandleStore,
	collector *usecase.CandleCollector,
	rc *pkgcache.RedisCache,
) xhttp.Handler {
	h := api.NewAlertsHandler(lgr, watcher, analyzer, tracker, notifier, store)
	if collector != nil {
		h.SetCollector(collector)
	}
	if rc != nil {
		h.SetCache(icache.NewRedisCache(rc.Client()))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	watcher *usecase.Watcher,
	collector *usecase.CandleCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.CandleIngestHandler,
	handler xhttp.Handler,
	publisher repository.AlertPublisher,
	jobs *queue.RedisQueue,
	client *redis.Client,
	producer *pkgkafka.Producer,
	m repository.Metrics,
) *server.App {
	// Count failed candle handling in the error metrics
	if consumer != nil && m != nil {
		consumer.WithConsumerHook(pkgkafka.HookFuncs{
			Err: func(_ context.Context, topic string, _ kafkago.Message, _ []byte, _ error) {
				m.RecordError("consume_" + topic)
			},
		})
	}
	app := server.New(cfg, lgr, watcher, collector, consumer, kh)
	app.SetHTTPHandler(handler)
	app.Publisher = publisher
	app.Jobs = jobs
	app.RedisClient = client

	// Ship aggregated error logs to the logs topic
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		lgr.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		})
	}
	return app
}
