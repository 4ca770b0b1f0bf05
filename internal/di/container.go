package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/decoy-alerts/internal/adapters/webhook"
	"github.com/mikey/decoy-alerts/internal/config"
	"github.com/mikey/decoy-alerts/internal/core"
	"github.com/mikey/decoy-alerts/internal/factory"
	"github.com/mikey/decoy-alerts/internal/logging"
	"github.com/mikey/decoy-alerts/internal/metrics"
	"github.com/mikey/decoy-alerts/internal/ports"
	"github.com/mikey/decoy-alerts/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	return BuildContainerWithConfig(config.New)
}

// BuildContainerWithConfig builds the container around a custom configuration constructor
func BuildContainerWithConfig(newConfig func() (*config.Config, error)) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(newConfig); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(metrics.New); err != nil {
		return nil, err
	}
	if err := container.Provide(func(c *metrics.Collector) core.Metrics {
		return c
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewEnrichmentFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewNotifyFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register store, shared by the registry and the event log
	if err := container.Provide(func(f *factory.StoreFactory) (ports.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s ports.Store) core.DecoyRegistry {
		return s
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s ports.Store) core.EventLog {
		return s
	}); err != nil {
		return nil, err
	}

	// Register enrichment clients
	if err := container.Provide(func(f *factory.EnrichmentFactory) (core.GeoResolver, error) {
		return f.CreateGeoResolver()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.EnrichmentFactory) (core.RawMessageFetcher, error) {
		return f.CreateRawMessageFetcher()
	}); err != nil {
		return nil, err
	}

	// Register text processor and alert composer
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory) *core.AlertComposer {
		return f.CreateAlertComposer()
	}); err != nil {
		return nil, err
	}

	// Register alert sender and dispatcher
	if err := container.Provide(func(f *factory.NotifyFactory) (core.AlertSender, error) {
		return f.CreateAlertSender()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.NotifyFactory, sender core.AlertSender) (ports.AlertDispatcher, error) {
		return f.CreateDispatcher(sender)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(d ports.AlertDispatcher) core.AlertDispatcher {
		return d
	}); err != nil {
		return nil, err
	}

	// Register ingestion service
	if err := container.Provide(core.NewIngestionService); err != nil {
		return nil, err
	}

	// Register inbound webhook server
	if err := container.Provide(func(
		cfg *config.Config,
		service *core.IngestionService,
		collector *metrics.Collector,
		logger *zap.Logger,
	) (ports.InboundServer, error) {
		serverConfig, err := cfg.GetServer()
		if err != nil {
			return nil, err
		}
		return webhook.NewServer(serverConfig, service, collector, logger), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}
