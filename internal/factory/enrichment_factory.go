package factory

import (
	"fmt"

	"github.com/mikey/decoy-alerts/internal/adapters/geo"
	"github.com/mikey/decoy-alerts/internal/adapters/mailgun"
	"github.com/mikey/decoy-alerts/internal/config"
	"github.com/mikey/decoy-alerts/internal/core"
	"go.uber.org/zap"
)

// EnrichmentFactory creates the geo resolver and raw message fetcher
type EnrichmentFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEnrichmentFactory creates a new enrichment factory
func NewEnrichmentFactory(cfg *config.Config, logger *zap.Logger) *EnrichmentFactory {
	return &EnrichmentFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateGeoResolver creates the reverse-geo client
func (f *EnrichmentFactory) CreateGeoResolver() (core.GeoResolver, error) {
	geoConfig, err := f.cfg.GetGeo()
	if err != nil {
		return nil, fmt.Errorf("invalid geo configuration: %w", err)
	}
	return geo.NewClient(geoConfig.BaseURL, geoConfig.Token, geoConfig.Timeout, f.logger), nil
}

// CreateRawMessageFetcher creates the Mailgun message fetcher
func (f *EnrichmentFactory) CreateRawMessageFetcher() (core.RawMessageFetcher, error) {
	mg, err := f.cfg.GetMailgun()
	if err != nil {
		return nil, fmt.Errorf("invalid mailgun configuration: %w", err)
	}
	if mg.APIKey == "" {
		f.logger.Warn("Mailgun API key not configured, raw message retrieval will fail")
	}
	return mailgun.NewFetcher(mg.APIKey, mg.Timeout, mg.SmallMessageThreshold, mg.MaxMessageBytes, mg.AllowedHosts, f.logger), nil
}
