// Package risk implements the deterministic risk scoring model for accounts
// and customers. Scores are additive over independently capped factors and
// clamp to [0, 100]; both calculations are pure over current graph state.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finsec/fraudlens/internal/domain"
)

// Factor weights and caps.
const (
	velocityWindow    = 60 * time.Minute
	velocityThreshold = 10
	velocityCap       = 30.0

	flaggedWindow = 7 * 24 * time.Hour
	flaggedCap    = 25.0

	newAccountDays  = 30
	newAccountBase  = 15.0
	newAccountDecay = 0.5

	suspendedPenalty = 20.0

	highValueAmount = 10000.0
	highValueCap    = 10.0

	kycFailedPenalty  = 25.0
	kycPendingPenalty = 15.0

	accountRiskWeight = 30.0

	newCustomerDays  = 60
	newCustomerBase  = 15.0
	newCustomerDecay = 0.25

	multiAccountThreshold = 5
	multiAccountCap       = 10.0
)

// Engine computes risk scores from graph state.
type Engine struct {
	store  domain.GraphStore
	logger *slog.Logger
}

// NewEngine creates a risk scoring engine.
func NewEngine(store domain.GraphStore, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With("component", "risk"),
	}
}

// AccountRisk computes the risk score for an account against the given
// reference time. The score is not persisted; callers decide whether to
// write it back.
func (e *Engine) AccountRisk(ctx context.Context, account *domain.Account, now time.Time) (domain.RiskScore, error) {
	if account == nil || account.ID == "" {
		return domain.RiskScore{}, fmt.Errorf("%w: account is required", domain.ErrInvalidInput)
	}

	var score float64
	var factors []string

	// Transaction velocity over the trailing hour.
	velocityCount, err := e.store.CountTransactionsSince(ctx, account.ID, now.Add(-velocityWindow))
	if err != nil {
		return domain.RiskScore{}, fmt.Errorf("velocity count failed: %w", err)
	}
	if velocityCount > velocityThreshold {
		contribution := float64(velocityCount) * 2
		if contribution > velocityCap {
			contribution = velocityCap
		}
		score += contribution
		factors = append(factors, fmt.Sprintf("High transaction velocity: %d in last hour", velocityCount))
	}

	// Flagged and high-value activity over the trailing week.
	recent, err := e.store.TransactionsByAccount(ctx, account.ID, now.Add(-flaggedWindow), time.Time{})
	if err != nil {
		return domain.RiskScore{}, fmt.Errorf("recent transaction lookup failed: %w", err)
	}

	var flaggedCount, highValueCount int
	for _, t := range recent {
		if t.IsFlagged {
			flaggedCount++
		}
		if t.Amount > highValueAmount {
			highValueCount++
		}
	}
	if flaggedCount > 0 {
		contribution := float64(flaggedCount) * 5
		if contribution > flaggedCap {
			contribution = flaggedCap
		}
		score += contribution
		factors = append(factors, fmt.Sprintf("Flagged transactions: %d", flaggedCount))
	}

	// Account age: newer accounts are riskier.
	ageDays := int(now.Sub(account.CreatedDate).Hours() / 24)
	if ageDays < newAccountDays {
		contribution := newAccountBase - float64(ageDays)*newAccountDecay
		if contribution > 0 {
			score += contribution
			factors = append(factors, fmt.Sprintf("New account: %d days old", ageDays))
		}
	}

	if account.Status == domain.AccountSuspended {
		score += suspendedPenalty
		factors = append(factors, "Account suspended")
	}

	if highValueCount > 0 {
		contribution := float64(highValueCount) * 2
		if contribution > highValueCap {
			contribution = highValueCap
		}
		score += contribution
		factors = append(factors, fmt.Sprintf("High-value transactions: %d", highValueCount))
	}

	return domain.RiskScore{
		Score:        domain.Clamp100(score),
		Factors:      factors,
		CalculatedAt: now,
	}, nil
}

// CustomerRisk computes the risk score for a customer from their profile and
// owned accounts. The account slice may be empty.
func (e *Engine) CustomerRisk(customer *domain.Customer, accounts []*domain.Account, now time.Time) (domain.RiskScore, error) {
	if customer == nil || customer.ID == "" {
		return domain.RiskScore{}, fmt.Errorf("%w: customer is required", domain.ErrInvalidInput)
	}

	var score float64
	var factors []string

	switch customer.KYCStatus {
	case domain.KYCFailed:
		score += kycFailedPenalty
		factors = append(factors, "KYC verification failed")
	case domain.KYCPending:
		score += kycPendingPenalty
		factors = append(factors, "KYC verification pending")
	}

	if len(accounts) > 0 {
		var sum float64
		for _, a := range accounts {
			sum += a.RiskScore
		}
		avg := sum / float64(len(accounts))
		score += (avg / 100) * accountRiskWeight
		if avg > 50 {
			factors = append(factors, fmt.Sprintf("High average account risk: %.1f", avg))
		}
	}

	ageDays := int(now.Sub(customer.CustomerSince).Hours() / 24)
	if ageDays < newCustomerDays {
		contribution := newCustomerBase - float64(ageDays)*newCustomerDecay
		if contribution > 0 {
			score += contribution
			factors = append(factors, fmt.Sprintf("New customer: %d days", ageDays))
		}
	}

	if len(accounts) > multiAccountThreshold {
		contribution := float64(len(accounts)-multiAccountThreshold) * 2
		if contribution > multiAccountCap {
			contribution = multiAccountCap
		}
		score += contribution
		factors = append(factors, fmt.Sprintf("Multiple accounts: %d", len(accounts)))
	}

	return domain.RiskScore{
		Score:        domain.Clamp100(score),
		Factors:      factors,
		CalculatedAt: now,
	}, nil
}
