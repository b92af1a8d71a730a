// Package alert converts detection findings into investigator-facing alerts.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finsec/fraudlens/internal/domain"
)

// Service creates and manages alerts.
type Service struct {
	store  domain.GraphStore
	bus    domain.EventBus
	logger *slog.Logger
}

// NewService creates an alert service. The event bus is optional; when
// present, alert creation publishes to TopicAlertCreated.
func NewService(store domain.GraphStore, bus domain.EventBus, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		bus:    bus,
		logger: logger.With("component", "alert"),
	}
}

// CreateFromPattern persists an unresolved alert for a detected pattern.
// Severity maps from confidence: >=0.9 critical, >=0.7 high, >=0.5 medium,
// else low.
func (s *Service) CreateFromPattern(ctx context.Context, pattern domain.Pattern, now time.Time) (*domain.Alert, error) {
	if pattern.Type == "" {
		return nil, fmt.Errorf("%w: pattern type is required", domain.ErrInvalidInput)
	}

	related := make([]string, 0, len(pattern.Entities))
	for _, e := range pattern.Entities {
		related = append(related, e.ID)
	}

	a := &domain.Alert{
		ID:              uuid.New().String(),
		Type:            string(pattern.Type),
		Severity:        domain.AlertSeverity(pattern.Confidence),
		CreatedAt:       now,
		Notes:           fmt.Sprintf("Detected %s. Confidence: %.2f", pattern.Type, pattern.Confidence),
		RelatedEntities: related,
	}

	if err := s.store.SaveAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save alert: %w", err)
	}

	s.publish(ctx, domain.TopicAlertCreated, a)
	s.logger.Info("alert created",
		"alert_id", a.ID, "type", a.Type, "severity", a.Severity)
	return a, nil
}

// Unresolved returns open alerts, newest first.
func (s *Service) Unresolved(ctx context.Context) ([]*domain.Alert, error) {
	return s.store.UnresolvedAlerts(ctx)
}

// Resolve marks an alert resolved at the given time.
func (s *Service) Resolve(ctx context.Context, alertID string, now time.Time) error {
	if alertID == "" {
		return fmt.Errorf("%w: alertID is required", domain.ErrInvalidInput)
	}
	if err := s.store.ResolveAlert(ctx, alertID, now); err != nil {
		return err
	}
	s.logger.Info("alert resolved", "alert_id", alertID)
	return nil
}

func (s *Service) publish(ctx context.Context, topic string, payload any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode event", "topic", topic, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, topic, data); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
