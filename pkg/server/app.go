package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SigPulse/internal/domain/repository"
	"SigPulse/internal/usecase"
	"SigPulse/pkg/config"
	xhttp "SigPulse/pkg/http"
	pkgkafka "SigPulse/pkg/kafka"
	applogger "SigPulse/pkg/logger"
	"SigPulse/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// App owns every long-lived component and runs them as one unit.
type App struct {
	cfg    *config.Config
	logger *applogger.Logger

	watcher   *usecase.Watcher
	collector *usecase.CandleCollector

	consumer      *pkgkafka.Consumer
	candleHandler pkgkafka.MessageHandler

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	// Closed on shutdown when set.
	Publisher   repository.AlertPublisher
	Jobs        *queue.RedisQueue
	RedisClient *redis.Client
}

// New assembles the core components into an App. Optional pieces
// (alert publisher, job queue, shared redis client) are attached by
// the DI layer after construction.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	watcher *usecase.Watcher,
	collector *usecase.CandleCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
) *App {
	return &App{
		cfg:           cfg,
		logger:        lgr,
		watcher:       watcher,
		collector:     collector,
		consumer:      consumer,
		candleHandler: kh,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts every component and blocks until a shutdown signal arrives.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.ensureLogger()
	a.httpServer = xhttp.NewServer(a.httpHandler, a.serverOptions()...)

	a.startBackground(ctx, l)

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	waitForSignal()
	l.Info("shutdown signal received")
	return a.shutdown(ctx, l)
}

func (a *App) ensureLogger() *applogger.Logger {
	if a.logger != nil {
		return a.logger
	}
	l, _ := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	return l
}

func (a *App) serverOptions() []xhttp.ServerOption {
	var opts []xhttp.ServerOption
	if p := a.cfg.Server.Port; p > 0 {
		opts = append(opts, xhttp.WithPort(p))
	}
	if a.cfg.Server.ReadTimeout > 0 && a.cfg.Server.WriteTimeout > 0 {
		opts = append(opts, xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout))
	}
	return opts
}

// startBackground launches the candle collector, the Kafka consumer,
// the redelivery workers and the scan loop. Each is optional except
// the scan loop.
func (a *App) startBackground(ctx context.Context, l *applogger.Logger) {
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("symbols", a.cfg.Binance.Symbols))
	}

	if a.consumer != nil && a.candleHandler != nil {
		a.consumer.RegisterHandler(a.candleHandler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.candleHandler.Topic()))
	}

	if a.Jobs != nil {
		if err := a.Jobs.Start(); err != nil {
			l.Warn("redis queue start error", applogger.Error(err))
		}
	}

	a.watcher.Start(ctx)
	l.Info("watcher started",
		applogger.Strings("symbols", a.watcher.Symbols()),
		applogger.Duration("interval", a.watcher.Interval()),
	)
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}

// shutdown stops components in dependency order: sources of new work
// first, then the sinks they feed.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	l.Info("shutting down...")

	// Nothing new reaches the notifier once the scan loop stops.
	a.watcher.Stop()

	if a.collector != nil {
		warnOnErr(l, "collector stop error", a.collector.Shutdown(ctx))
	}
	if a.consumer != nil {
		warnOnErr(l, "kafka consumer stop error", a.consumer.Stop(ctx))
	}

	stopCtx, cancel := context.WithTimeout(ctx, a.shutdownTimeout())
	defer cancel()
	if err := a.httpServer.Stop(stopCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}
	if a.Jobs != nil {
		warnOnErr(l, "redis queue stop error", a.Jobs.Stop(stopCtx))
	}

	// Flush aggregated logs while the alert pipeline is still open.
	l.RemoveCollector()

	if a.Publisher != nil {
		warnOnErr(l, "alert publisher close error", a.Publisher.Close())
	}
	if a.RedisClient != nil {
		warnOnErr(l, "redis close error", a.RedisClient.Close())
	}

	l.Info("shutdown complete")
	return nil
}

// warnOnErr logs err at warn level when it is non-nil.
func warnOnErr(l *applogger.Logger, msg string, err error) {
	if err != nil {
		l.Warn(msg, applogger.Error(err))
	}
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
