package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/decoy-alerts/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IngestionService is the core service handling decoy hits
type IngestionService struct {
	registry   DecoyRegistry
	events     EventLog
	geo        GeoResolver
	raw        RawMessageFetcher
	composer   *AlertComposer
	dispatcher AlertDispatcher
	metrics    Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	registry DecoyRegistry,
	events EventLog,
	geo GeoResolver,
	raw RawMessageFetcher,
	composer *AlertComposer,
	dispatcher AlertDispatcher,
	metrics Metrics,
	logger *zap.Logger,
) *IngestionService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &IngestionService{
		registry:   registry,
		events:     events,
		geo:        geo,
		raw:        raw,
		composer:   composer,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// EffectiveIP returns the provider-reported sender IP, falling back to the
// address of the connection peer
func EffectiveIP(msg *InboundMessage) string {
	if ip := strings.TrimSpace(msg.SenderIPHeader); ip != "" {
		return ip
	}
	return strings.TrimSpace(msg.PeerIP)
}

// HandleInbound runs one inbound notification through the pipeline:
// enrich, match, persist, dispatch. Enrichment and dispatch problems are
// logged and never returned; a registry or event log failure is.
func (s *IngestionService) HandleInbound(ctx context.Context, msg *InboundMessage) (*IngestionResult, error) {
	result := &IngestionResult{IngestionID: uuid.NewString()}
	ip := EffectiveIP(msg)

	logger := s.logger.With(
		zap.String("ingestion_id", result.IngestionID),
		zap.String("decoy", msg.Recipient))

	logger.Info("Decoy hit received",
		zap.String("sender", msg.Sender),
		zap.String("ip", ip),
		zap.String("subject", msg.Subject))

	geo, raw := s.enrich(ctx, ip, msg.MessageReference)
	result.Location = geo.Location
	result.GeoDegraded = geo.Degraded
	result.Attachment = raw.Present && len(raw.Data) > 0

	if geo.Degraded {
		s.metrics.EnrichmentDegraded(CallGeo)
		logger.Warn("Geo lookup degraded",
			zap.String("call", CallGeo),
			zap.String("ip", ip),
			zap.Error(geo.Cause))
	}
	if msg.MessageReference != "" && !raw.Present {
		s.metrics.EnrichmentDegraded(CallRawMessage)
		logger.Warn("Raw message unavailable, alert will carry no attachment",
			zap.String("call", CallRawMessage),
			zap.Error(raw.Cause))
	}

	decoy, err := s.registry.LookupDecoy(ctx, msg.Recipient)
	if errors.Is(err, ErrDecoyNotFound) {
		s.metrics.IngestionOutcome(OutcomeUnmatched)
		logger.Warn("No match for decoy")
		return result, nil
	}
	if err != nil {
		s.metrics.IngestionOutcome(OutcomeFailed)
		logger.Error("Failed to look up decoy", zap.Error(err))
		return result, fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
	}
	result.Matched = true

	event := &Event{
		DecoyAddress: msg.Recipient,
		Sender:       msg.Sender,
		IP:           ip,
		Subject:      msg.Subject,
		CreatedAt:    s.now().UTC(),
	}
	eventID, err := s.events.RecordEvent(ctx, event)
	if err != nil {
		s.metrics.IngestionOutcome(OutcomeFailed)
		logger.Error("Failed to record event", zap.Error(err))
		return result, fmt.Errorf("%w: %w", ErrEventPersistence, err)
	}
	result.EventID = eventID
	s.metrics.IngestionOutcome(OutcomeMatched)

	logger.Info("Event recorded",
		zap.Int64("event_id", eventID),
		zap.String("customer", decoy.CustomerEmail),
		zap.String("use_case", decoy.UseCase))

	alert := s.composer.Compose(AlertInput{
		Recipient:    decoy.CustomerEmail,
		DecoyAddress: msg.Recipient,
		UseCase:      decoy.UseCase,
		Sender:       msg.Sender,
		IP:           ip,
		Geo:          geo.Location,
		Subject:      msg.Subject,
		Body:         s.previewSource(logger, msg.Body, raw),
		RawMessage:   raw.Data,
	})

	// The event is already durable; a dispatch problem only gets logged
	if err := s.dispatcher.Dispatch(ctx, alert); err != nil {
		logger.Warn("Alert not dispatched",
			zap.String("customer", decoy.CustomerEmail),
			zap.Error(err))
		return result, nil
	}
	result.Dispatched = true

	return result, nil
}

// enrich runs the geo lookup and the raw message fetch concurrently
func (s *IngestionService) enrich(ctx context.Context, ip, reference string) (GeoResult, RawMessageResult) {
	var (
		geo GeoResult
		raw RawMessageResult
		g   errgroup.Group
	)

	g.Go(func() error {
		geo = s.geo.ResolveGeo(ctx, ip)
		return nil
	})
	g.Go(func() error {
		if reference == "" {
			raw = RawMessageAbsent(nil)
			return nil
		}
		raw = s.raw.FetchRawMessage(ctx, reference)
		return nil
	})
	_ = g.Wait()

	return geo, raw
}

// previewSource picks the text shown in the alert preview. The webhook's
// plain-text body wins; otherwise the text part of the raw message is used.
func (s *IngestionService) previewSource(logger *zap.Logger, body string, raw RawMessageResult) string {
	if strings.TrimSpace(body) != "" || !raw.Present {
		return body
	}
	text, err := utils.ExtractPlainText(raw.Data)
	if err != nil {
		logger.Debug("Failed to extract text from raw message", zap.Error(err))
		return ""
	}
	return text
}
