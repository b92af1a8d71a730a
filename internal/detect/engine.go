// Package detect implements the fraud pattern detection engine: circular
// flows, fan-out/fan-in bursts, mule accounts, and shared infrastructure.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finsec/fraudlens/internal/domain"
)

// Detection defaults, matching the calibrated production thresholds.
const (
	DefaultMinCycleLength  = 3
	DefaultMaxCycleLength  = 8
	maxCycleLengthBound    = 10
	DefaultFanThreshold    = 5
	DefaultFanWindow       = 24 * time.Hour
	DefaultMuleThroughput  = 10000.0
	DefaultMuleMaxHold     = 48 * time.Hour
	DefaultMinSharedUsers  = 2
	maxFlaggedTransactions = 5000

	// circularFlowConfidence reflects the structural certainty of a closed
	// loop of flagged transactions.
	circularFlowConfidence = 0.8

	// muleConfidence applies to accounts passing the near-pass-through test.
	muleConfidence = 0.75

	// muleRetentionRatio is the maximum |inflow-outflow|/inflow for an
	// account to count as near pass-through.
	muleRetentionRatio = 0.10
)

// Engine runs the detection algorithms against a graph store. All methods
// are read-only over the store and return empty results, never errors, when
// nothing matches.
type Engine struct {
	store  domain.GraphStore
	logger *slog.Logger
}

// NewEngine creates a pattern detection engine.
func NewEngine(store domain.GraphStore, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With("component", "detect"),
	}
}

// CircularFlowParams bound the cycle search.
type CircularFlowParams struct {
	MinLength int       // minimum hops, default 3
	MaxLength int       // maximum hops, default 8
	Now       time.Time // reference time stamped onto findings
}

// CircularFlows finds directed cycles of flagged transactions returning to
// their origin account. Rotations and reversals of the same cycle are
// reported once.
func (e *Engine) CircularFlows(ctx context.Context, p CircularFlowParams) ([]domain.Pattern, error) {
	if p.MinLength == 0 {
		p.MinLength = DefaultMinCycleLength
	}
	if p.MaxLength == 0 {
		p.MaxLength = DefaultMaxCycleLength
	}
	if p.MinLength < 2 || p.MaxLength < p.MinLength || p.MaxLength > maxCycleLengthBound {
		return nil, fmt.Errorf("%w: cycle length bounds must satisfy 2 <= min <= max <= %d",
			domain.ErrInvalidInput, maxCycleLengthBound)
	}

	flagged, err := e.store.FlaggedTransactions(ctx, maxFlaggedTransactions)
	if err != nil {
		return nil, fmt.Errorf("failed to load flagged transactions: %w", err)
	}

	cycles := newCycleFinder(flagged, p.MinLength, p.MaxLength).find()

	patterns := make([]domain.Pattern, 0, len(cycles))
	for _, cycle := range cycles {
		var total float64
		steps := make([]domain.CycleStep, len(cycle))
		entities := make([]domain.EntityRef, 0, len(cycle))
		for i, t := range cycle {
			steps[i] = domain.CycleStep{TransactionID: t.ID, Amount: t.Amount}
			total += t.Amount
			entities = append(entities, domain.EntityRef{ID: t.FromAccountID, Kind: domain.KindAccount})
		}

		patterns = append(patterns, domain.Pattern{
			Type:        domain.PatternCircularFlow,
			Confidence:  circularFlowConfidence,
			Entities:    entities,
			Cycle:       steps,
			TotalAmount: total,
			Summary:     fmt.Sprintf("Circular flow across %d accounts totaling %.2f", len(cycle), total),
			DetectedAt:  p.Now,
		})
	}

	e.logger.Debug("circular flow detection complete",
		"flagged", len(flagged), "cycles", len(patterns))
	return patterns, nil
}

// FanParams bound a fan-out or fan-in aggregation.
type FanParams struct {
	MinCounterparties int           // default 5
	Window            time.Duration // trailing window, default 24h
	Now               time.Time     // reference time the window trails from
}

func (p *FanParams) normalize() error {
	if p.MinCounterparties == 0 {
		p.MinCounterparties = DefaultFanThreshold
	}
	if p.Window == 0 {
		p.Window = DefaultFanWindow
	}
	if p.MinCounterparties < 2 {
		return fmt.Errorf("%w: minimum counterparties must be at least 2", domain.ErrInvalidInput)
	}
	if p.Window < 0 {
		return fmt.Errorf("%w: window must be positive", domain.ErrInvalidInput)
	}
	return nil
}

// FanOut finds source accounts transferring to an unusually large number of
// distinct destinations within the trailing window.
func (e *Engine) FanOut(ctx context.Context, p FanParams) ([]domain.Pattern, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}

	summaries, err := e.store.FanOut(ctx, p.Now.Add(-p.Window), p.MinCounterparties)
	if err != nil {
		return nil, fmt.Errorf("fan-out aggregation failed: %w", err)
	}
	return e.fanPatterns(summaries, domain.PatternFanOut, "sent to", p.Now), nil
}

// FanIn finds destination accounts receiving from many distinct senders.
func (e *Engine) FanIn(ctx context.Context, p FanParams) ([]domain.Pattern, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}

	summaries, err := e.store.FanIn(ctx, p.Now.Add(-p.Window), p.MinCounterparties)
	if err != nil {
		return nil, fmt.Errorf("fan-in aggregation failed: %w", err)
	}
	return e.fanPatterns(summaries, domain.PatternFanIn, "received from", p.Now), nil
}

func (e *Engine) fanPatterns(summaries []domain.CounterpartySummary, patternType domain.PatternType, verb string, now time.Time) []domain.Pattern {
	patterns := make([]domain.Pattern, 0, len(summaries))
	for _, s := range summaries {
		patterns = append(patterns, domain.Pattern{
			Type:           patternType,
			Confidence:     fanConfidence(s.Counterparties),
			Entities:       []domain.EntityRef{{ID: s.AccountID, Kind: domain.KindAccount}},
			Counterparties: s.Counterparties,
			TotalAmount:    s.TotalAmount,
			Summary: fmt.Sprintf("Account %s %s %d accounts, total %.2f",
				s.AccountID, verb, s.Counterparties, s.TotalAmount),
			DetectedAt: now,
		})
	}
	return patterns
}

// fanConfidence scales with the counterparty count, capped at 0.9.
func fanConfidence(counterparties int) float64 {
	c := float64(counterparties) / 10
	if c > 0.9 {
		c = 0.9
	}
	return c
}

// MuleParams bound the mule account scan.
type MuleParams struct {
	MinThroughput float64       // minimum inbound total, default 10000
	MaxHold       time.Duration // maximum first-in to first-out gap, default 48h
	Now           time.Time
}

// MuleAccounts finds accounts that receive at least MinThroughput, forward
// funds within MaxHold of the first inflow, and retain less than 10% of what
// came in.
func (e *Engine) MuleAccounts(ctx context.Context, p MuleParams) ([]domain.Pattern, error) {
	if p.MinThroughput == 0 {
		p.MinThroughput = DefaultMuleThroughput
	}
	if p.MaxHold == 0 {
		p.MaxHold = DefaultMuleMaxHold
	}
	if p.MinThroughput < 0 || p.MaxHold < 0 {
		return nil, fmt.Errorf("%w: throughput and hold bounds must be positive", domain.ErrInvalidInput)
	}

	flows, err := e.store.AccountFlows(ctx)
	if err != nil {
		return nil, fmt.Errorf("account flow aggregation failed: %w", err)
	}

	var patterns []domain.Pattern
	for _, f := range flows {
		if f.TotalIn < p.MinThroughput {
			continue
		}
		if f.HoldTime < 0 || f.HoldTime > p.MaxHold {
			continue
		}
		retention := (f.TotalIn - f.TotalOut) / f.TotalIn
		if retention < 0 {
			retention = -retention
		}
		if retention >= muleRetentionRatio {
			continue
		}

		patterns = append(patterns, domain.Pattern{
			Type:        domain.PatternMuleAccount,
			Confidence:  muleConfidence,
			Entities:    []domain.EntityRef{{ID: f.AccountID, Kind: domain.KindAccount}},
			TotalAmount: f.TotalIn,
			Summary: fmt.Sprintf("Account %s passed through %.2f of %.2f within %s",
				f.AccountID, f.TotalOut, f.TotalIn, f.HoldTime),
			DetectedAt: p.Now,
		})
	}
	return patterns, nil
}

// InfraParams bounds a shared infrastructure scan.
type InfraParams struct {
	Kind     domain.InfraKind
	MinUsers int // default 2
	Now      time.Time
}

// SharedInfrastructure finds devices or IPs shared by multiple otherwise
// unrelated customers or accounts.
func (e *Engine) SharedInfrastructure(ctx context.Context, p InfraParams) ([]domain.Pattern, error) {
	if p.MinUsers == 0 {
		p.MinUsers = DefaultMinSharedUsers
	}
	if p.Kind != domain.InfraDevice && p.Kind != domain.InfraIP {
		return nil, fmt.Errorf("%w: unknown infrastructure kind %q", domain.ErrInvalidInput, p.Kind)
	}
	if p.MinUsers < 2 {
		return nil, fmt.Errorf("%w: minimum users must be at least 2", domain.ErrInvalidInput)
	}

	clusters, err := e.store.SharedInfrastructure(ctx, p.Kind, p.MinUsers)
	if err != nil {
		return nil, fmt.Errorf("shared infrastructure query failed: %w", err)
	}

	patterns := make([]domain.Pattern, 0, len(clusters))
	for _, c := range clusters {
		var entities []domain.EntityRef
		var members int
		patternType := domain.PatternSharedDevice

		switch c.Kind {
		case domain.InfraDevice:
			entities = append(entities, domain.EntityRef{ID: c.InfrastructureID, Kind: domain.KindDevice})
			for _, id := range c.CustomerIDs {
				entities = append(entities, domain.EntityRef{ID: id, Kind: domain.KindCustomer})
			}
			members = len(c.CustomerIDs)
		case domain.InfraIP:
			patternType = domain.PatternSharedIP
			entities = append(entities, domain.EntityRef{ID: c.InfrastructureID, Kind: domain.KindIP})
			for _, id := range c.AccountIDs {
				entities = append(entities, domain.EntityRef{ID: id, Kind: domain.KindAccount})
			}
			members = len(c.AccountIDs)
		}

		patterns = append(patterns, domain.Pattern{
			Type:       patternType,
			Confidence: sharedInfraConfidence(members),
			Entities:   entities,
			Summary: fmt.Sprintf("%s %s shared by %d parties",
				c.Kind, c.InfrastructureID, members),
			DetectedAt: p.Now,
		})
	}
	return patterns, nil
}

// sharedInfraConfidence grows with the sharing population, capped at 0.9.
func sharedInfraConfidence(members int) float64 {
	c := 0.4 + 0.1*float64(members)
	if c > 0.9 {
		c = 0.9
	}
	return c
}

// DetectAll runs every detector with default thresholds against the given
// reference time. Individual detector failures abort the sweep.
func (e *Engine) DetectAll(ctx context.Context, now time.Time) ([]domain.Pattern, error) {
	var all []domain.Pattern

	circular, err := e.CircularFlows(ctx, CircularFlowParams{Now: now})
	if err != nil {
		return nil, err
	}
	all = append(all, circular...)

	fanOut, err := e.FanOut(ctx, FanParams{Now: now})
	if err != nil {
		return nil, err
	}
	all = append(all, fanOut...)

	fanIn, err := e.FanIn(ctx, FanParams{Now: now})
	if err != nil {
		return nil, err
	}
	all = append(all, fanIn...)

	mules, err := e.MuleAccounts(ctx, MuleParams{Now: now})
	if err != nil {
		return nil, err
	}
	all = append(all, mules...)

	for _, kind := range []domain.InfraKind{domain.InfraDevice, domain.InfraIP} {
		shared, err := e.SharedInfrastructure(ctx, InfraParams{Kind: kind, Now: now})
		if err != nil {
			return nil, err
		}
		all = append(all, shared...)
	}

	e.logger.Info("pattern detection sweep complete", "patterns", len(all))
	return all, nil
}
