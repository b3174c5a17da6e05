//go:build wireinject
// +build wireinject

package di

import (
	"SigPulse/pkg/config"
	"SigPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp assembles the full application from cfg. The body below
// is a template; wire replaces it in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Logging and metrics
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories (with business logic)
		ProvideCandleStore,
		ProvideCandleFeed,
		ProvideMarketStream,
		ProvideAlertPublisher,

		// Domain services
		ProvideMarketAnalyzer,
		ProvideAlertChannels,

		// Use cases
		ProvideJobQueue,
		ProvideNotifier,
		ProvideAlertTracker,
		ProvideAnalyzer,
		ProvideWatcher,
		ProvideCandleCollector,
		ProvideCandleIngestHandler,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
