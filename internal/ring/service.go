// Package ring implements fraud ring tracking: grouping correlated pattern
// findings into rings with an investigation lifecycle.
package ring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finsec/fraudlens/internal/domain"
)

// validTransitions is the ring status state machine. INVESTIGATING branches
// to CONFIRMED or FALSE_POSITIVE; both proceed to the terminal RESOLVED.
var validTransitions = map[domain.RingStatus][]domain.RingStatus{
	domain.RingInvestigating: {domain.RingConfirmed, domain.RingFalsePositive},
	domain.RingConfirmed:     {domain.RingResolved},
	domain.RingFalsePositive: {domain.RingResolved},
	domain.RingResolved:      {},
}

// Service manages fraud rings and their membership.
type Service struct {
	store  domain.GraphStore
	bus    domain.EventBus
	logger *slog.Logger
}

// NewService creates a fraud ring analysis service. The event bus is
// optional; when present, ring creation publishes to TopicRingCreated.
func NewService(store domain.GraphStore, bus domain.EventBus, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		bus:    bus,
		logger: logger.With("component", "ring"),
	}
}

// CreateFromPattern persists a new ring seeded from a detected pattern,
// linking every evidence entity as a participant. The ring starts in
// INVESTIGATING status.
func (s *Service) CreateFromPattern(ctx context.Context, pattern domain.Pattern, now time.Time) (*domain.FraudRing, error) {
	if pattern.Type == "" {
		return nil, fmt.Errorf("%w: pattern type is required", domain.ErrInvalidInput)
	}
	if len(pattern.Entities) == 0 {
		return nil, fmt.Errorf("%w: pattern carries no evidence entities", domain.ErrInvalidInput)
	}

	ring := &domain.FraudRing{
		ID:           uuid.New().String(),
		DetectedDate: now,
		Confidence:   pattern.Confidence,
		Status:       domain.RingInvestigating,
		TotalAmount:  pattern.TotalAmount,
		MemberCount:  len(pattern.Entities),
		PatternType:  pattern.Type,
		Description:  fmt.Sprintf("Detected %s pattern", pattern.Type),
	}

	if err := s.store.SaveRing(ctx, ring); err != nil {
		return nil, fmt.Errorf("failed to save ring: %w", err)
	}

	for _, member := range pattern.Entities {
		if err := s.store.LinkMember(ctx, ring.ID, member, "participant"); err != nil {
			return nil, fmt.Errorf("failed to link member %s: %w", member.ID, err)
		}
	}

	count, err := s.store.RingMemberCount(ctx, ring.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	ring.MemberCount = count

	s.publish(ctx, domain.TopicRingCreated, ring)
	s.logger.Info("fraud ring created",
		"ring_id", ring.ID, "pattern", ring.PatternType, "members", ring.MemberCount)
	return ring, nil
}

// UpdateStatus transitions a ring through its investigation lifecycle and
// appends a timestamped note. Unknown ring IDs return ErrNotFound without
// mutation; invalid transitions return ErrInvalidInput.
func (s *Service) UpdateStatus(ctx context.Context, ringID string, status domain.RingStatus, notes string, now time.Time) (*domain.FraudRing, error) {
	if _, known := validTransitions[status]; !known {
		return nil, fmt.Errorf("%w: unknown ring status %q", domain.ErrInvalidInput, status)
	}

	ring, err := s.store.Ring(ctx, ringID)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(ring.Status, status) {
		return nil, fmt.Errorf("%w: cannot transition ring from %s to %s",
			domain.ErrInvalidInput, ring.Status, status)
	}

	ring.Status = status
	if notes != "" {
		ring.Description += fmt.Sprintf("\n%s: %s", now.Format(time.RFC3339), notes)
	}

	if err := s.store.SaveRing(ctx, ring); err != nil {
		return nil, fmt.Errorf("failed to save ring: %w", err)
	}

	s.logger.Info("fraud ring status updated", "ring_id", ringID, "status", status)
	return ring, nil
}

// Active returns rings not yet resolved, newest first.
func (s *Service) Active(ctx context.Context) ([]*domain.FraudRing, error) {
	return s.store.ActiveRings(ctx)
}

// Get returns one ring with its current member count.
func (s *Service) Get(ctx context.Context, ringID string) (*domain.FraudRing, error) {
	return s.store.Ring(ctx, ringID)
}

func transitionAllowed(from, to domain.RingStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
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
