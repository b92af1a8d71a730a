// Package investigate composes the detection, scoring, ring, and alert
// components behind a single facade serving analyst queries. Everything it
// returns is plain structured data; no engine internals cross the boundary.
package investigate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finsec/fraudlens/internal/alert"
	"github.com/finsec/fraudlens/internal/detect"
	"github.com/finsec/fraudlens/internal/domain"
	"github.com/finsec/fraudlens/internal/ring"
	"github.com/finsec/fraudlens/internal/risk"
	"github.com/finsec/fraudlens/internal/rules"
)

const (
	// highRiskThreshold is the canonical high-risk band lower bound.
	highRiskThreshold = domain.BandHigh

	// maxPathDepth bounds connection path lookups.
	maxPathDepth = 5

	// dossierDepth is the neighborhood depth included in a dossier.
	dossierDepth = 2

	// recentTransactionLimit caps the transactions embedded in a dossier.
	recentTransactionLimit = 20

	// listLimit is the default and maximum page size for list queries.
	defaultListLimit = 10
	maxListLimit     = 500

	dashboardCacheKey = "dashboard:summary"
	dashboardCacheTTL = 30 * time.Second
	dossierCacheTTL   = time.Minute
)

// Facade orchestrates the investigation workflow over the entity graph.
type Facade struct {
	store    domain.GraphStore
	cache    domain.Cache
	bus      domain.EventBus
	detector *detect.Engine
	scorer   *risk.Engine
	rings    *ring.Service
	alerts   *alert.Service
	screener *rules.Engine
	logger   *slog.Logger

	// nowFn is the reference-time source, injectable for deterministic tests.
	nowFn func() time.Time

	locks *accountLocks
}

// New creates an investigation facade over the given components.
func New(store domain.GraphStore, cache domain.Cache, bus domain.EventBus,
	detector *detect.Engine, scorer *risk.Engine, rings *ring.Service,
	alerts *alert.Service, screener *rules.Engine, logger *slog.Logger) *Facade {
	return &Facade{
		store:    store,
		cache:    cache,
		bus:      bus,
		detector: detector,
		scorer:   scorer,
		rings:    rings,
		alerts:   alerts,
		screener: screener,
		logger:   logger.With("component", "investigate"),
		nowFn:    time.Now,
		locks:    newAccountLocks(),
	}
}

// SetNowFunc overrides the reference-time source.
func (f *Facade) SetNowFunc(fn func() time.Time) {
	f.nowFn = fn
}

// DashboardSummary is the analyst landing-page aggregate.
type DashboardSummary struct {
	FlaggedTransactions int       `json:"flaggedTransactions"`
	HighRiskAccounts    int       `json:"highRiskAccounts"`
	ActiveRings         int       `json:"activeRings"`
	UnresolvedAlerts    int       `json:"unresolvedAlerts"`
	CriticalAlerts      int       `json:"criticalAlerts"`
	GeneratedAt         time.Time `json:"generatedAt"`
}

// Dashboard builds the dashboard summary, served from cache when fresh.
func (f *Facade) Dashboard(ctx context.Context) (*DashboardSummary, error) {
	if cached, err := f.cache.Get(ctx, dashboardCacheKey); err == nil && cached != nil {
		var summary DashboardSummary
		if err := json.Unmarshal(cached, &summary); err == nil {
			return &summary, nil
		}
	}

	flagged, err := f.store.FlaggedTransactions(ctx, maxListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load flagged transactions: %w", err)
	}

	highRisk, err := f.store.HighRiskAccounts(ctx, highRiskThreshold, maxListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load high-risk accounts: %w", err)
	}

	rings, err := f.rings.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rings: %w", err)
	}

	alerts, err := f.alerts.Unresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	critical := 0
	for _, a := range alerts {
		if a.Severity == domain.RiskCritical {
			critical++
		}
	}

	summary := &DashboardSummary{
		FlaggedTransactions: len(flagged),
		HighRiskAccounts:    len(highRisk),
		ActiveRings:         len(rings),
		UnresolvedAlerts:    len(alerts),
		CriticalAlerts:      critical,
		GeneratedAt:         f.nowFn(),
	}

	if data, err := json.Marshal(summary); err == nil {
		_ = f.cache.Set(ctx, dashboardCacheKey, data, dashboardCacheTTL)
	}

	return summary, nil
}

// Velocity is the trailing transaction-count view of an account.
type Velocity struct {
	LastHour int64 `json:"lastHour"`
	LastDay  int64 `json:"lastDay"`
}

// Dossier is the full investigation view of a single entity.
type Dossier struct {
	Entity             domain.EntityRef      `json:"entity"`
	Profile            any                   `json:"profile"`
	Risk               *domain.RiskScore     `json:"risk,omitempty"`
	Velocity           *Velocity             `json:"velocity,omitempty"`
	RecentTransactions []*domain.Transaction `json:"recentTransactions,omitempty"`
	Neighborhood       *domain.Neighborhood  `json:"neighborhood"`
	GeneratedAt        time.Time             `json:"generatedAt"`
}

// Investigate assembles the dossier for an entity: profile, risk score,
// velocity, recent transactions, and the depth-2 neighborhood. An empty
// entityType resolves the kind from the graph.
func (f *Facade) Investigate(ctx context.Context, entityID string, entityType domain.EntityKind) (*Dossier, error) {
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity id is required", domain.ErrInvalidInput)
	}

	ref := domain.EntityRef{ID: entityID, Kind: entityType}
	if entityType == "" {
		resolved, err := f.store.ResolveEntity(ctx, entityID)
		if err != nil {
			return nil, err
		}
		ref = resolved
	}

	cacheKey := "dossier:" + string(ref.Kind) + ":" + ref.ID
	if cached, err := f.cache.Get(ctx, cacheKey); err == nil && cached != nil {
		var dossier Dossier
		if err := json.Unmarshal(cached, &dossier); err == nil {
			return &dossier, nil
		}
	}

	now := f.nowFn()
	dossier := &Dossier{Entity: ref, GeneratedAt: now}

	if err := f.buildProfile(ctx, dossier, now); err != nil {
		return nil, err
	}

	neighborhood, err := f.store.Neighborhood(ctx, ref, dossierDepth)
	if err != nil {
		return nil, fmt.Errorf("neighborhood query failed: %w", err)
	}
	dossier.Neighborhood = neighborhood

	if data, err := json.Marshal(dossier); err == nil {
		_ = f.cache.Set(ctx, cacheKey, data, dossierCacheTTL)
	}

	return dossier, nil
}

// buildProfile fills the kind-specific parts of a dossier.
func (f *Facade) buildProfile(ctx context.Context, d *Dossier, now time.Time) error {
	switch d.Entity.Kind {
	case domain.KindAccount:
		account, err := f.store.Account(ctx, d.Entity.ID)
		if err != nil {
			return err
		}
		d.Profile = account

		score, err := f.scorer.AccountRisk(ctx, account, now)
		if err != nil {
			return fmt.Errorf("account risk calculation failed: %w", err)
		}
		d.Risk = &score

		hour, err := f.store.CountTransactionsSince(ctx, account.ID, now.Add(-time.Hour))
		if err != nil {
			return fmt.Errorf("velocity count failed: %w", err)
		}
		day, err := f.store.CountTransactionsSince(ctx, account.ID, now.Add(-24*time.Hour))
		if err != nil {
			return fmt.Errorf("velocity count failed: %w", err)
		}
		d.Velocity = &Velocity{LastHour: hour, LastDay: day}

		recent, err := f.store.TransactionsByAccount(ctx, account.ID, time.Time{}, time.Time{})
		if err != nil {
			return fmt.Errorf("failed to load transactions: %w", err)
		}
		if len(recent) > recentTransactionLimit {
			recent = recent[:recentTransactionLimit]
		}
		d.RecentTransactions = recent

	case domain.KindCustomer:
		customer, err := f.store.Customer(ctx, d.Entity.ID)
		if err != nil {
			return err
		}
		d.Profile = customer

		accounts, err := f.store.AccountsByCustomer(ctx, customer.ID)
		if err != nil {
			return fmt.Errorf("failed to load customer accounts: %w", err)
		}
		score, err := f.scorer.CustomerRisk(customer, accounts, now)
		if err != nil {
			return fmt.Errorf("customer risk calculation failed: %w", err)
		}
		d.Risk = &score

	case domain.KindTransaction:
		tx, err := f.store.Transaction(ctx, d.Entity.ID)
		if err != nil {
			return err
		}
		d.Profile = tx

	case domain.KindDevice:
		device, err := f.store.Device(ctx, d.Entity.ID)
		if err != nil {
			return err
		}
		d.Profile = device

	case domain.KindIP:
		ip, err := f.store.IPAddress(ctx, d.Entity.ID)
		if err != nil {
			return err
		}
		d.Profile = ip

	case domain.KindMerchant:
		merchant, err := f.store.Merchant(ctx, d.Entity.ID)
		if err != nil {
			return err
		}
		d.Profile = merchant

	default:
		return fmt.Errorf("%w: unknown entity type %q", domain.ErrInvalidInput, d.Entity.Kind)
	}
	return nil
}

// ConnectionPath returns a shortest path between two entities within five
// hops, or ErrNotFound when they are not connected.
func (f *Facade) ConnectionPath(ctx context.Context, fromID, toID string) ([]domain.PathStep, error) {
	if fromID == "" || toID == "" {
		return nil, fmt.Errorf("%w: both entity ids are required", domain.ErrInvalidInput)
	}
	return f.store.ShortestPath(ctx, fromID, toID, maxPathDepth)
}

// HighRiskAccounts lists accounts at or above the high-risk band, highest
// risk first.
func (f *Facade) HighRiskAccounts(ctx context.Context, limit int) ([]*domain.Account, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	return f.store.HighRiskAccounts(ctx, highRiskThreshold, limit)
}

// FlaggedTransactions lists flagged transactions, newest first.
func (f *Facade) FlaggedTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	return f.store.FlaggedTransactions(ctx, limit)
}

func normalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return defaultListLimit, nil
	}
	if limit < 0 {
		return 0, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

// InvestigationReport is a point-in-time dossier snapshot with the alerts
// referencing the entity.
type InvestigationReport struct {
	ID            string          `json:"id"`
	GeneratedAt   time.Time       `json:"generatedAt"`
	Dossier       *Dossier        `json:"dossier"`
	RelatedAlerts []*domain.Alert `json:"relatedAlerts"`
}

// CreateReport assembles an investigation report for an entity.
func (f *Facade) CreateReport(ctx context.Context, entityID string, entityType domain.EntityKind) (*InvestigationReport, error) {
	dossier, err := f.Investigate(ctx, entityID, entityType)
	if err != nil {
		return nil, err
	}

	unresolved, err := f.alerts.Unresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	var related []*domain.Alert
	for _, a := range unresolved {
		for _, id := range a.RelatedEntities {
			if id == entityID {
				related = append(related, a)
				break
			}
		}
	}

	return &InvestigationReport{
		ID:            uuid.New().String(),
		GeneratedAt:   f.nowFn(),
		Dossier:       dossier,
		RelatedAlerts: related,
	}, nil
}

// Search looks an entity up by ID, account number, or customer email and
// returns matching graph nodes.
func (f *Facade) Search(ctx context.Context, query string) ([]domain.GraphNode, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}

	var results []domain.GraphNode

	if ref, err := f.store.ResolveEntity(ctx, query); err == nil {
		results = append(results, domain.GraphNode{ID: ref.ID, Kind: ref.Kind})
	}

	if account, err := f.store.AccountByNumber(ctx, query); err == nil {
		results = appendUnique(results, domain.GraphNode{
			ID: account.ID, Kind: domain.KindAccount, Label: account.Number,
		})
	}

	if customer, err := f.store.CustomerByEmail(ctx, query); err == nil {
		results = appendUnique(results, domain.GraphNode{
			ID: customer.ID, Kind: domain.KindCustomer, Label: customer.Name,
		})
	}

	return results, nil
}

func appendUnique(nodes []domain.GraphNode, node domain.GraphNode) []domain.GraphNode {
	for _, n := range nodes {
		if n.ID == node.ID && n.Kind == node.Kind {
			return nodes
		}
	}
	return append(nodes, node)
}
