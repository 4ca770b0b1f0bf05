package factory

import (
	"github.com/mikey/decoy-alerts/internal/config"
	"github.com/mikey/decoy-alerts/internal/core"
	"github.com/mikey/decoy-alerts/internal/utils"
	"go.uber.org/zap"
)

// TextProcessorFactory creates text processors and the alert composer built on them
type TextProcessorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewTextProcessorFactory creates a new TextProcessorFactory
func NewTextProcessorFactory(cfg *config.Config, logger *zap.Logger) *TextProcessorFactory {
	return &TextProcessorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *TextProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateAlertComposer creates the composer with the configured preview bound
func (f *TextProcessorFactory) CreateAlertComposer() *core.AlertComposer {
	return core.NewAlertComposer(f.CreateTextProcessor(), f.cfg.GetInt("alert.body_preview_limit"))
}
