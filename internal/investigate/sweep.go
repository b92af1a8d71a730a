package investigate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/finsec/fraudlens/internal/domain"
)

const (
	// maxConcurrentScoring bounds the scoring workers of a sweep.
	maxConcurrentScoring = 8

	// sweepTransactionLimit caps the flagged transactions a sweep walks.
	sweepTransactionLimit = 5000

	// ringConfidenceThreshold is the minimum pattern confidence that opens a
	// tracked fraud ring in addition to the alert.
	ringConfidenceThreshold = 0.8
)

// SweepReport summarizes a full pattern-detection sweep.
type SweepReport struct {
	PatternsDetected  int            `json:"patternsDetected"`
	PatternsByType    map[string]int `json:"patternsByType"`
	AlertsCreated     int            `json:"alertsCreated"`
	RingsCreated      int            `json:"ringsCreated"`
	AccountsEvaluated int            `json:"accountsEvaluated"`
	AccountsUpdated   int            `json:"accountsUpdated"`
	HighRiskAccounts  int            `json:"highRiskAccounts"`
	StartedAt         time.Time      `json:"startedAt"`
	Duration          time.Duration  `json:"duration"`
}

// DetectFraudPatterns runs every detector, raises alerts for each finding,
// opens rings for high-confidence findings, and then recomputes and persists
// the risk score of every account touched by a flagged transaction.
func (f *Facade) DetectFraudPatterns(ctx context.Context) (*SweepReport, error) {
	now := f.nowFn()
	report := &SweepReport{
		PatternsByType: make(map[string]int),
		StartedAt:      now,
	}

	patterns, err := f.detector.DetectAll(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("detection sweep failed: %w", err)
	}
	report.PatternsDetected = len(patterns)

	for _, pattern := range patterns {
		report.PatternsByType[string(pattern.Type)]++

		if _, err := f.alerts.CreateFromPattern(ctx, pattern, now); err != nil {
			return nil, fmt.Errorf("alert creation failed: %w", err)
		}
		report.AlertsCreated++

		if pattern.Confidence >= ringConfidenceThreshold {
			if _, err := f.rings.CreateFromPattern(ctx, pattern, now); err != nil {
				return nil, fmt.Errorf("ring creation failed: %w", err)
			}
			report.RingsCreated++
		}

		f.publish(ctx, domain.TopicPatternDetected, pattern)
	}

	if err := f.rescoreTouchedAccounts(ctx, now, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(now)
	_ = f.cache.Delete(ctx, dashboardCacheKey)

	f.logger.Info("fraud detection sweep complete",
		"patterns", report.PatternsDetected,
		"alerts", report.AlertsCreated,
		"rings", report.RingsCreated,
		"accounts_evaluated", report.AccountsEvaluated,
		"accounts_updated", report.AccountsUpdated,
		"high_risk", report.HighRiskAccounts,
	)
	return report, nil
}

// rescoreTouchedAccounts recomputes risk for every account on a flagged
// transaction. Scoring runs concurrently under a semaphore; writes serialize
// per account so the last full recomputation wins.
func (f *Facade) rescoreTouchedAccounts(ctx context.Context, now time.Time, report *SweepReport) error {
	flagged, err := f.store.FlaggedTransactions(ctx, sweepTransactionLimit)
	if err != nil {
		return fmt.Errorf("failed to load flagged transactions: %w", err)
	}

	touched := make(map[string]struct{})
	for _, tx := range flagged {
		if tx.FromAccountID != "" {
			touched[tx.FromAccountID] = struct{}{}
		}
		if tx.ToAccountID != "" {
			touched[tx.ToAccountID] = struct{}{}
		}
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		sem       = make(chan struct{}, maxConcurrentScoring)
		evaluated int
		updated   int
		highRisk  int
		sweepErr  error
	)

	for accountID := range touched {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(accountID string) {
			defer wg.Done()
			defer func() { <-sem }()

			changed, score, err := f.rescoreAccount(ctx, accountID, now)
			if errors.Is(err, domain.ErrNotFound) {
				// A flagged transaction referencing a missing account is
				// logged and excluded rather than aborting the sweep.
				f.logger.Warn("flagged transaction references missing account",
					"account_id", accountID)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if sweepErr == nil {
					sweepErr = err
				}
				return
			}
			evaluated++
			if changed {
				updated++
			}
			if score >= highRiskThreshold {
				highRisk++
			}
		}(accountID)
	}

	wg.Wait()
	if sweepErr != nil {
		return sweepErr
	}

	report.AccountsEvaluated = evaluated
	report.AccountsUpdated = updated
	report.HighRiskAccounts = highRisk
	return nil
}

// rescoreAccount recomputes one account's risk and persists it when changed.
func (f *Facade) rescoreAccount(ctx context.Context, accountID string, now time.Time) (changed bool, score float64, err error) {
	unlock := f.locks.lock(accountID)
	defer unlock()

	account, err := f.store.Account(ctx, accountID)
	if err != nil {
		return false, 0, err
	}

	risk, err := f.scorer.AccountRisk(ctx, account, now)
	if err != nil {
		return false, 0, fmt.Errorf("risk calculation failed for %s: %w", accountID, err)
	}

	if risk.Score == account.RiskScore {
		return false, risk.Score, nil
	}

	if err := f.store.UpdateAccountRisk(ctx, accountID, risk.Score); err != nil {
		return false, 0, fmt.Errorf("risk update failed for %s: %w", accountID, err)
	}

	f.publish(ctx, domain.TopicRiskUpdated, map[string]any{
		"accountId": accountID,
		"score":     risk.Score,
		"previous":  account.RiskScore,
	})
	return true, risk.Score, nil
}

// publish fires an event without failing the caller on bus errors.
func (f *Facade) publish(ctx context.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		f.logger.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := f.bus.Publish(ctx, topic, data); err != nil {
		f.logger.Error("failed to publish event", "topic", topic, "error", err)
	}
}

// accountLocks serializes risk writes per account.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for an account and returns its unlock func.
func (l *accountLocks) lock(accountID string) func() {
	l.mu.Lock()
	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
