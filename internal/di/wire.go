//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"RiskWatch/internal/usecase"
	"RiskWatch/pkg/config"
	"RiskWatch/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideAssets,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideSQLiteClient,
		ProvideRedisCache,
		ProvideClickHouseClient,

		// Repositories
		ProvideKVStore,
		ProvideArchive,
		ProvideRuleStore,
		ProvideNotificationHistory,

		// Signals, scoring, alerting
		ProvideSignalBoard,
		ProvideSignalSource,
		ProvideKafkaConsumer,
		ProvideSummarizer,
		ProvideEvaluator,
		ProvideHub,
		ProvideSinks,
		ProvidePipeline,

		// Use cases
		usecase.NewAnalysisBoard,
		ProvideRefreshCycle,
		usecase.NewAssessmentsUseCase,
		usecase.NewRulesUseCase,
		usecase.NewNotificationsUseCase,

		// HTTP and application server
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
