//go:build wireinject
// +build wireinject

package di

import (
	"VolStack/pkg/config"
	"VolStack/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvidePostgresClient,

		// Repositories
		ProvideBarStore,
		ProvideFeatureStore,
		ProvidePredictionStore,
		ProvideBackfiller,
		ProvidePublisher,
		ProvideCache,

		// Domain services
		ProvideAligner,
		ProvideLiveEngine,
		ProvideVolatilityPredictor,
		ProvideDirectionPredictor,
		ProvideDecider,

		// Use cases
		ProvideRegenerator,
		ProvideSyncOrchestrator,
		ProvidePipeline,
		ProvideCycleLoop,

		// HTTP surface
		ProvideSignalHub,
		ProvideHandler,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
