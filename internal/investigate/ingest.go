package investigate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finsec/fraudlens/internal/domain"
	"github.com/finsec/fraudlens/internal/rules"
)

// velocityCounterWindow is the trailing window of the per-account ingestion
// counters kept in cache.
const velocityCounterWindow = time.Hour

// IngestResult reports the outcome of ingesting one transaction.
type IngestResult struct {
	TransactionID string   `json:"transactionId"`
	FraudScore    float64  `json:"fraudScore"`
	Flagged       bool     `json:"flagged"`
	MatchedRules  []string `json:"matchedRules,omitempty"`
}

// IngestTransaction screens a transaction against the loaded rules, stamps
// the fraud score and flag, and persists it. Referenced entities that do not
// exist screen with neutral defaults rather than failing the ingestion.
func (f *Facade) IngestTransaction(ctx context.Context, tx *domain.Transaction) (*IngestResult, error) {
	if tx == nil || tx.ID == "" {
		return nil, fmt.Errorf("%w: transaction with id is required", domain.ErrInvalidInput)
	}
	if tx.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = f.nowFn()
	}

	input, err := f.resolveScreenContext(ctx, tx)
	if err != nil {
		return nil, err
	}

	result, err := f.screener.Screen(input)
	if err != nil {
		return nil, fmt.Errorf("screening failed: %w", err)
	}

	tx.FraudScore = result.FraudScore
	tx.IsFlagged = result.Flagged

	if err := f.store.SaveTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	f.bumpVelocityCounters(ctx, tx)

	if result.Flagged {
		_ = f.cache.Delete(ctx, dashboardCacheKey)
		f.logger.Info("transaction flagged at ingestion",
			"transaction_id", tx.ID,
			"fraud_score", result.FraudScore,
			"matched_rules", result.MatchedRules,
		)
	}

	return &IngestResult{
		TransactionID: tx.ID,
		FraudScore:    result.FraudScore,
		Flagged:       result.Flagged,
		MatchedRules:  result.MatchedRules,
	}, nil
}

// resolveScreenContext loads the entities a transaction references so the
// rules can see merchant, IP, device, and account attributes. Missing
// references are left nil.
func (f *Facade) resolveScreenContext(ctx context.Context, tx *domain.Transaction) (rules.ScreenInput, error) {
	input := rules.ScreenInput{Transaction: tx}

	if tx.MerchantID != "" {
		merchant, err := f.store.Merchant(ctx, tx.MerchantID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return input, fmt.Errorf("merchant lookup failed: %w", err)
		}
		input.Merchant = merchant
	}

	if tx.IPAddress != "" {
		ip, err := f.store.IPAddress(ctx, tx.IPAddress)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return input, fmt.Errorf("ip lookup failed: %w", err)
		}
		input.IP = ip
	}

	if tx.DeviceID != "" {
		device, err := f.store.Device(ctx, tx.DeviceID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return input, fmt.Errorf("device lookup failed: %w", err)
		}
		input.Device = device
	}

	if tx.FromAccountID != "" {
		account, err := f.store.Account(ctx, tx.FromAccountID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return input, fmt.Errorf("account lookup failed: %w", err)
		}
		input.FromAccount = account
	}

	if tx.ToAccountID != "" {
		account, err := f.store.Account(ctx, tx.ToAccountID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return input, fmt.Errorf("account lookup failed: %w", err)
		}
		input.ToAccount = account
	}

	return input, nil
}

// bumpVelocityCounters increments the trailing-hour ingestion counters for
// the accounts a transaction touches. Counter failures are logged, never
// fatal.
func (f *Facade) bumpVelocityCounters(ctx context.Context, tx *domain.Transaction) {
	for _, accountID := range []string{tx.FromAccountID, tx.ToAccountID} {
		if accountID == "" {
			continue
		}
		if _, err := f.cache.IncrementCounter(ctx, "velocity:"+accountID, velocityCounterWindow); err != nil {
			f.logger.Warn("velocity counter increment failed",
				"account_id", accountID, "error", err)
		}
	}
}
