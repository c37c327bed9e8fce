//go:build wireinject
// +build wireinject

package di

import (
	"github.com/EasyE-base/neural-command-layer/pkg/config"
	"github.com/EasyE-base/neural-command-layer/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,
		ProvideClickHouseClient,

		// Repositories
		ProvideEventBus,
		ProvideSessionHistory,
		ProvidePendingStore,
		ProvideAuditStore,
		ProvideAuditConsumer,

		// Evidence and risk
		ProvideGateway,
		ProvideQuoteBook,
		ProvideMarketStream,
		ProvideMarketSource,
		ProvideSentimentSource,
		ProvideRiskSource,
		ProvideRiskChecker,
		ProvideSemanticResolver,

		// Use cases
		ProvideCommandResolver,
		ProvideConfirmationGate,
		ProvideEvidenceAggregator,
		ProvideConsensusSynthesizer,
		ProvideExecutionPipeline,
		ProvideCommandOrchestrator,

		// Boundary
		ProvideCommandHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
