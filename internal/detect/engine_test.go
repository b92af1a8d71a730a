package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/finsec/fraudlens/internal/domain"
	"github.com/finsec/fraudlens/internal/graph"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedAccount(t *testing.T, store domain.GraphStore, id string, created time.Time) {
	t.Helper()
	err := store.SaveAccount(context.Background(), &domain.Account{
		ID:          id,
		Number:      "ACC-" + id,
		Type:        domain.AccountChecking,
		Status:      domain.AccountActive,
		CreatedDate: created,
		Country:     "US",
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("SaveAccount(%s) failed: %v", id, err)
	}
}

func seedTransfer(t *testing.T, store domain.GraphStore, id, from, to string, amount float64, ts time.Time, flagged bool) {
	t.Helper()
	err := store.SaveTransaction(context.Background(), &domain.Transaction{
		ID:            id,
		Amount:        amount,
		Currency:      "USD",
		Timestamp:     ts,
		Type:          domain.TxTransfer,
		Status:        domain.TxCompleted,
		Channel:       domain.ChannelOnline,
		IsFlagged:     flagged,
		FromAccountID: from,
		ToAccountID:   to,
	})
	if err != nil {
		t.Fatalf("SaveTransaction(%s) failed: %v", id, err)
	}
}

func TestCircularFlows(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// One distinct cycle per length from 3 to 8, each on its own accounts,
	// must yield exactly one pattern each with no rotation or reversal
	// duplicates.
	for length := 3; length <= 8; length++ {
		t.Run(fmt.Sprintf("CycleLength%d", length), func(t *testing.T) {
			store := graph.NewMemoryStore()
			engine := NewEngine(store, testLogger())

			accounts := make([]string, length)
			for i := range accounts {
				accounts[i] = fmt.Sprintf("acc-%d-%d", length, i)
				seedAccount(t, store, accounts[i], now.AddDate(0, -6, 0))
			}
			for i := range accounts {
				seedTransfer(t, store,
					fmt.Sprintf("tx-%d-%d", length, i),
					accounts[i], accounts[(i+1)%length],
					1000, now.Add(time.Duration(i)*time.Minute), true)
			}

			patterns, err := engine.CircularFlows(ctx, CircularFlowParams{Now: now})
			if err != nil {
				t.Fatalf("CircularFlows failed: %v", err)
			}
			if len(patterns) != 1 {
				t.Fatalf("expected exactly 1 pattern, got %d", len(patterns))
			}

			p := patterns[0]
			if p.Type != domain.PatternCircularFlow {
				t.Errorf("expected circular_flow, got %s", p.Type)
			}
			if p.Confidence != 0.8 {
				t.Errorf("expected confidence 0.8, got %.2f", p.Confidence)
			}
			if len(p.Cycle) != length {
				t.Errorf("expected %d cycle steps, got %d", length, len(p.Cycle))
			}
			if p.TotalAmount != float64(length)*1000 {
				t.Errorf("expected total %.2f, got %.2f", float64(length)*1000, p.TotalAmount)
			}
			if len(p.Entities) != length {
				t.Errorf("expected %d entity refs, got %d", length, len(p.Entities))
			}
			for _, e := range p.Entities {
				if e.Kind != domain.KindAccount {
					t.Errorf("expected account refs, got %s", e.Kind)
				}
			}
		})
	}

	t.Run("UnflaggedTransactionsIgnored", func(t *testing.T) {
		store := graph.NewMemoryStore()
		engine := NewEngine(store, testLogger())

		for i := 0; i < 3; i++ {
			seedAccount(t, store, fmt.Sprintf("acc-%d", i), now.AddDate(0, -6, 0))
		}
		for i := 0; i < 3; i++ {
			seedTransfer(t, store, fmt.Sprintf("tx-%d", i),
				fmt.Sprintf("acc-%d", i), fmt.Sprintf("acc-%d", (i+1)%3),
				1000, now, false)
		}

		patterns, err := engine.CircularFlows(ctx, CircularFlowParams{Now: now})
		if err != nil {
			t.Fatalf("CircularFlows failed: %v", err)
		}
		if len(patterns) != 0 {
			t.Errorf("expected no patterns from unflagged cycle, got %d", len(patterns))
		}
	})

	t.Run("ShortCycleBelowMinimum", func(t *testing.T) {
		store := graph.NewMemoryStore()
		engine := NewEngine(store, testLogger())

		seedAccount(t, store, "acc-a", now.AddDate(0, -6, 0))
		seedAccount(t, store, "acc-b", now.AddDate(0, -6, 0))
		seedTransfer(t, store, "tx-ab", "acc-a", "acc-b", 500, now, true)
		seedTransfer(t, store, "tx-ba", "acc-b", "acc-a", 500, now, true)

		patterns, err := engine.CircularFlows(ctx, CircularFlowParams{MinLength: 3, MaxLength: 8, Now: now})
		if err != nil {
			t.Fatalf("CircularFlows failed: %v", err)
		}
		if len(patterns) != 0 {
			t.Errorf("expected 2-hop cycle excluded at min 3, got %d patterns", len(patterns))
		}
	})

	t.Run("InvalidBounds", func(t *testing.T) {
		engine := NewEngine(graph.NewMemoryStore(), testLogger())
		_, err := engine.CircularFlows(ctx, CircularFlowParams{MinLength: 5, MaxLength: 3, Now: now})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestFanOut(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	seedFan := func(t *testing.T, store domain.GraphStore, recipients int) {
		seedAccount(t, store, "acc-hub", now.AddDate(0, -6, 0))
		for i := 0; i < recipients; i++ {
			to := fmt.Sprintf("acc-out-%d", i)
			seedAccount(t, store, to, now.AddDate(0, -6, 0))
			seedTransfer(t, store, fmt.Sprintf("tx-%d", i),
				"acc-hub", to, 900, now.Add(-time.Duration(i)*time.Minute), false)
		}
	}

	t.Run("FiveRecipientsConfidenceHalf", func(t *testing.T) {
		store := graph.NewMemoryStore()
		engine := NewEngine(store, testLogger())
		seedFan(t, store, 5)

		patterns, err := engine.FanOut(ctx, FanParams{MinCounterparties: 5, Now: now})
		if err != nil {
			t.Fatalf("FanOut failed: %v", err)
		}
		if len(patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(patterns))
		}
		if patterns[0].Confidence != 0.5 {
			t.Errorf("expected confidence 0.5, got %.2f", patterns[0].Confidence)
		}
		if patterns[0].Counterparties != 5 {
			t.Errorf("expected 5 counterparties, got %d", patterns[0].Counterparties)
		}
		if patterns[0].TotalAmount != 4500 {
			t.Errorf("expected total 4500, got %.2f", patterns[0].TotalAmount)
		}
	})

	t.Run("TwelveRecipientsConfidenceCapped", func(t *testing.T) {
		store := graph.NewMemoryStore()
		engine := NewEngine(store, testLogger())
		seedFan(t, store, 12)

		patterns, err := engine.FanOut(ctx, FanParams{MinCounterparties: 5, Now: now})
		if err != nil {
			t.Fatalf("FanOut failed: %v", err)
		}
		if len(patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(patterns))
		}
		if patterns[0].Confidence != 0.9 {
			t.Errorf("expected confidence capped at 0.9, got %.2f", patterns[0].Confidence)
		}
	})

	t.Run("BelowThresholdEmpty", func(t *testing.T) {
		store := graph.NewMemoryStore()
		engine := NewEngine(store, testLogger())
		seedFan(t, store, 3)

		patterns, err := engine.FanOut(ctx, FanParams{MinCounterparties: 5, Now: now})
		if err != nil {
			t.Fatalf("FanOut failed: %v", err)
		}
		if len(patterns) != 0 {
			t.Errorf("expected no patterns below threshold, got %d", len(patterns))
		}
	})

	t.Run("WindowExcludesOldTransfers", func(t *testing.T) {
		store := graph.NewMemoryStore()
		engine := NewEngine(store, testLogger())
		seedAccount(t, store, "acc-hub", now.AddDate(0, -6, 0))
		for i := 0; i < 6; i++ {
			to := fmt.Sprintf("acc-out-%d", i)
			seedAccount(t, store, to, now.AddDate(0, -6, 0))
			// All transfers two days old, outside the 24h window.
			seedTransfer(t, store, fmt.Sprintf("tx-%d", i),
				"acc-hub", to, 900, now.Add(-48*time.Hour), false)
		}

		patterns, err := engine.FanOut(ctx, FanParams{MinCounterparties: 5, Now: now})
		if err != nil {
			t.Fatalf("FanOut failed: %v", err)
		}
		if len(patterns) != 0 {
			t.Errorf("expected stale transfers excluded, got %d patterns", len(patterns))
		}
	})
}

func TestFanIn(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	store := graph.NewMemoryStore()
	engine := NewEngine(store, testLogger())

	seedAccount(t, store, "acc-sink", now.AddDate(0, -6, 0))
	for i := 0; i < 7; i++ {
		from := fmt.Sprintf("acc-in-%d", i)
		seedAccount(t, store, from, now.AddDate(0, -6, 0))
		seedTransfer(t, store, fmt.Sprintf("tx-%d", i),
			from, "acc-sink", 400, now.Add(-time.Duration(i)*time.Hour), false)
	}

	patterns, err := engine.FanIn(ctx, FanParams{MinCounterparties: 5, Now: now})
	if err != nil {
		t.Fatalf("FanIn failed: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}
	if patterns[0].Type != domain.PatternFanIn {
		t.Errorf("expected fan_in, got %s", patterns[0].Type)
	}
	if patterns[0].Entities[0].ID != "acc-sink" {
		t.Errorf("expected acc-sink as evidence, got %s", patterns[0].Entities[0].ID)
	}
	if patterns[0].Confidence != 0.7 {
		t.Errorf("expected confidence 0.7 for 7 senders, got %.2f", patterns[0].Confidence)
	}
}

func TestMuleAccounts(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("NearPassThroughFlagged", func(t *testing.T) {
		store := graph.NewMemoryStore()
		engine := NewEngine(store, testLogger())

		seedAccount(t, store, "acc-src", now.AddDate(0, -6, 0))
		seedAccount(t, store, "acc-mule", now.AddDate(0, -1, 0))
		seedAccount(t, store, "acc-dst", now.AddDate(0, -6, 0))

		// Receives 12000, forwards 11900 ten hours later.
		seedTransfer(t, store, "tx-in", "acc-src", "acc-mule", 12000, now.Add(-20*time.Hour), false)
		seedTransfer(t, store, "tx-out", "acc-mule", "acc-dst", 11900, now.Add(-10*time.Hour), false)

		patterns, err := engine.MuleAccounts(ctx, MuleParams{MinThroughput: 10000, MaxHold: 48 * time.Hour, Now: now})
		if err != nil {
			t.Fatalf("MuleAccounts failed: %v", err)
		}

		var mule *domain.Pattern
		for i := range patterns {
			if patterns[i].Entities[0].ID == "acc-mule" {
				mule = &patterns[i]
			}
		}
		if mule == nil {
			t.Fatalf("expected acc-mule flagged, got %v", patterns)
		}
		if mule.Type != domain.PatternMuleAccount {
			t.Errorf("expected mule_account, got %s", mule.Type)
		}
		if mule.TotalAmount != 12000 {
			t.Errorf("expected throughput 12000, got %.2f", mule.TotalAmount)
		}
	})

	t.Run("HighRetentionNotFlagged", func(t *testing.T) {
		store := graph.NewMemoryStore()
		engine := NewEngine(store, testLogger())

		seedAccount(t, store, "acc-src", now.AddDate(0, -6, 0))
		seedAccount(t, store, "acc-keeper", now.AddDate(0, -1, 0))
		seedAccount(t, store, "acc-dst", now.AddDate(0, -6, 0))

		// Receives 12000 but forwards only 2000.
		seedTransfer(t, store, "tx-in", "acc-src", "acc-keeper", 12000, now.Add(-20*time.Hour), false)
		seedTransfer(t, store, "tx-out", "acc-keeper", "acc-dst", 2000, now.Add(-10*time.Hour), false)

		patterns, err := engine.MuleAccounts(ctx, MuleParams{MinThroughput: 10000, MaxHold: 48 * time.Hour, Now: now})
		if err != nil {
			t.Fatalf("MuleAccounts failed: %v", err)
		}
		for _, p := range patterns {
			if p.Entities[0].ID == "acc-keeper" {
				t.Errorf("account retaining most funds must not be flagged: %+v", p)
			}
		}
	})

	t.Run("SlowForwardingNotFlagged", func(t *testing.T) {
		store := graph.NewMemoryStore()
		engine := NewEngine(store, testLogger())

		seedAccount(t, store, "acc-src", now.AddDate(0, -6, 0))
		seedAccount(t, store, "acc-slow", now.AddDate(0, -1, 0))
		seedAccount(t, store, "acc-dst", now.AddDate(0, -6, 0))

		seedTransfer(t, store, "tx-in", "acc-src", "acc-slow", 12000, now.AddDate(0, 0, -10), false)
		seedTransfer(t, store, "tx-out", "acc-slow", "acc-dst", 11900, now.Add(-time.Hour), false)

		patterns, err := engine.MuleAccounts(ctx, MuleParams{MinThroughput: 10000, MaxHold: 48 * time.Hour, Now: now})
		if err != nil {
			t.Fatalf("MuleAccounts failed: %v", err)
		}
		for _, p := range patterns {
			if p.Entities[0].ID == "acc-slow" {
				t.Errorf("account holding past the max hold must not be flagged: %+v", p)
			}
		}
	})
}

func TestSharedInfrastructure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	store := graph.NewMemoryStore()
	engine := NewEngine(store, testLogger())

	for i := 0; i < 3; i++ {
		err := store.SaveCustomer(ctx, &domain.Customer{
			ID:            fmt.Sprintf("cust-%d", i),
			Name:          fmt.Sprintf("Customer %d", i),
			Email:         fmt.Sprintf("c%d@example.com", i),
			DateOfBirth:   time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
			CustomerSince: now.AddDate(-1, 0, 0),
			KYCStatus:     domain.KYCVerified,
			RiskLevel:     domain.RiskLow,
		})
		if err != nil {
			t.Fatalf("SaveCustomer failed: %v", err)
		}
	}
	if err := store.SaveDevice(ctx, &domain.Device{
		ID: "dev-shared", Type: "mobile", OS: "Android",
		FirstSeen: now.AddDate(0, -2, 0), LastSeen: now,
	}); err != nil {
		t.Fatalf("SaveDevice failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.RecordDeviceUse(ctx, fmt.Sprintf("cust-%d", i), "dev-shared", now); err != nil {
			t.Fatalf("RecordDeviceUse failed: %v", err)
		}
	}

	t.Run("SharedDevice", func(t *testing.T) {
		patterns, err := engine.SharedInfrastructure(ctx, InfraParams{Kind: domain.InfraDevice, Now: now})
		if err != nil {
			t.Fatalf("SharedInfrastructure failed: %v", err)
		}
		if len(patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(patterns))
		}
		p := patterns[0]
		if p.Type != domain.PatternSharedDevice {
			t.Errorf("expected shared_device, got %s", p.Type)
		}
		// Device ref plus three customer refs
		if len(p.Entities) != 4 {
			t.Errorf("expected 4 entity refs, got %d", len(p.Entities))
		}
		if p.Entities[0].Kind != domain.KindDevice {
			t.Errorf("expected leading device ref, got %s", p.Entities[0].Kind)
		}
	})

	t.Run("NoSharedIPs", func(t *testing.T) {
		patterns, err := engine.SharedInfrastructure(ctx, InfraParams{Kind: domain.InfraIP, Now: now})
		if err != nil {
			t.Fatalf("SharedInfrastructure failed: %v", err)
		}
		if len(patterns) != 0 {
			t.Errorf("expected no IP clusters, got %d", len(patterns))
		}
	})

	t.Run("UnknownKind", func(t *testing.T) {
		_, err := engine.SharedInfrastructure(ctx, InfraParams{Kind: domain.InfraKind("dns"), Now: now})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestDetectAllEmptyGraph(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(graph.NewMemoryStore(), testLogger())

	patterns, err := engine.DetectAll(context.Background(), now)
	if err != nil {
		t.Fatalf("DetectAll failed: %v", err)
	}
	if len(patterns) != 0 {
		t.Errorf("expected no patterns on empty graph, got %d", len(patterns))
	}
}
