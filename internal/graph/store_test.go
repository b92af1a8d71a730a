package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/finsec/fraudlens/internal/domain"
)

func newSQLiteStore(t *testing.T) domain.GraphStore {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "fraudlens-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	store, err := New(domain.GraphStoreConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteGraphStore(t *testing.T) {
	testGraphStore(t, newSQLiteStore(t))
}

func TestMemoryGraphStore(t *testing.T) {
	testGraphStore(t, NewMemoryStore())
}

func testGraphStore(t *testing.T, store domain.GraphStore) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetAccount", func(t *testing.T) {
		acct := &domain.Account{
			ID:          "acc-001",
			Number:      "ACC-10001",
			Type:        domain.AccountChecking,
			Status:      domain.AccountActive,
			CreatedDate: base.AddDate(0, -6, 0),
			RiskScore:   12.5,
			Country:     "US",
			Currency:    "USD",
			Balance:     5400.20,
		}
		if err := store.SaveAccount(ctx, acct); err != nil {
			t.Fatalf("SaveAccount failed: %v", err)
		}

		got, err := store.Account(ctx, "acc-001")
		if err != nil {
			t.Fatalf("Account failed: %v", err)
		}
		if got.Number != "ACC-10001" {
			t.Errorf("expected number ACC-10001, got %s", got.Number)
		}
		if got.RiskScore != 12.5 {
			t.Errorf("expected risk score 12.5, got %.2f", got.RiskScore)
		}

		byNumber, err := store.AccountByNumber(ctx, "ACC-10001")
		if err != nil {
			t.Fatalf("AccountByNumber failed: %v", err)
		}
		if byNumber.ID != "acc-001" {
			t.Errorf("expected acc-001, got %s", byNumber.ID)
		}
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		_, err := store.Account(ctx, "no-such-account")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SaveAccountValidation", func(t *testing.T) {
		err := store.SaveAccount(ctx, &domain.Account{})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("UpdateAccountRisk", func(t *testing.T) {
		if err := store.UpdateAccountRisk(ctx, "acc-001", 85); err != nil {
			t.Fatalf("UpdateAccountRisk failed: %v", err)
		}
		got, err := store.Account(ctx, "acc-001")
		if err != nil {
			t.Fatalf("Account failed: %v", err)
		}
		if got.RiskScore != 85 {
			t.Errorf("expected risk score 85, got %.2f", got.RiskScore)
		}

		if err := store.UpdateAccountRisk(ctx, "no-such-account", 50); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		// Scores clamp to [0, 100]
		if err := store.UpdateAccountRisk(ctx, "acc-001", 150); err != nil {
			t.Fatalf("UpdateAccountRisk failed: %v", err)
		}
		got, _ = store.Account(ctx, "acc-001")
		if got.RiskScore != 100 {
			t.Errorf("expected clamped score 100, got %.2f", got.RiskScore)
		}
	})

	t.Run("CustomerAndOwnership", func(t *testing.T) {
		customer := &domain.Customer{
			ID:            "cust-001",
			Name:          "Ana Morales",
			Email:         "ana@example.com",
			DateOfBirth:   time.Date(1988, 3, 14, 0, 0, 0, 0, time.UTC),
			CustomerSince: base.AddDate(-2, 0, 0),
			KYCStatus:     domain.KYCVerified,
			RiskLevel:     domain.RiskLow,
		}
		if err := store.SaveCustomer(ctx, customer); err != nil {
			t.Fatalf("SaveCustomer failed: %v", err)
		}

		got, err := store.CustomerByEmail(ctx, "ana@example.com")
		if err != nil {
			t.Fatalf("CustomerByEmail failed: %v", err)
		}
		if got.ID != "cust-001" {
			t.Errorf("expected cust-001, got %s", got.ID)
		}

		if err := store.LinkOwnership(ctx, "cust-001", "acc-001"); err != nil {
			t.Fatalf("LinkOwnership failed: %v", err)
		}
		// Linking twice is a no-op
		if err := store.LinkOwnership(ctx, "cust-001", "acc-001"); err != nil {
			t.Fatalf("repeated LinkOwnership failed: %v", err)
		}

		accounts, err := store.AccountsByCustomer(ctx, "cust-001")
		if err != nil {
			t.Fatalf("AccountsByCustomer failed: %v", err)
		}
		if len(accounts) != 1 || accounts[0].ID != "acc-001" {
			t.Errorf("expected [acc-001], got %v", accounts)
		}
	})

	t.Run("TransactionRoundTrip", func(t *testing.T) {
		second := &domain.Account{
			ID: "acc-002", Number: "ACC-10002",
			Type: domain.AccountSavings, Status: domain.AccountActive,
			CreatedDate: base.AddDate(0, -3, 0), Country: "US", Currency: "USD",
		}
		if err := store.SaveAccount(ctx, second); err != nil {
			t.Fatalf("SaveAccount failed: %v", err)
		}

		tx := &domain.Transaction{
			ID:            "tx-001",
			Amount:        1500,
			Currency:      "USD",
			Timestamp:     base,
			Type:          domain.TxTransfer,
			Status:        domain.TxCompleted,
			Channel:       domain.ChannelOnline,
			IsFlagged:     true,
			FraudScore:    0.72,
			FromAccountID: "acc-001",
			ToAccountID:   "acc-002",
			IPAddress:     "203.0.113.9",
		}
		if err := store.SaveTransaction(ctx, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		got, err := store.Transaction(ctx, "tx-001")
		if err != nil {
			t.Fatalf("Transaction failed: %v", err)
		}
		if !got.IsFlagged {
			t.Error("expected transaction to be flagged")
		}
		if got.FromAccountID != "acc-001" || got.ToAccountID != "acc-002" {
			t.Errorf("account references lost: from=%q to=%q", got.FromAccountID, got.ToAccountID)
		}
		if got.MerchantID != "" {
			t.Errorf("expected absent merchant reference, got %q", got.MerchantID)
		}
	})

	t.Run("SaveTransactionValidation", func(t *testing.T) {
		err := store.SaveTransaction(ctx, &domain.Transaction{ID: "tx-bad", Amount: -5})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for negative amount, got %v", err)
		}
	})

	t.Run("TransactionsByAccount", func(t *testing.T) {
		later := &domain.Transaction{
			ID: "tx-002", Amount: 200, Currency: "USD",
			Timestamp: base.Add(2 * time.Hour),
			Type:      domain.TxPayment, Status: domain.TxCompleted, Channel: domain.ChannelMobile,
			FromAccountID: "acc-001",
		}
		if err := store.SaveTransaction(ctx, later); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		txs, err := store.TransactionsByAccount(ctx, "acc-001", time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("TransactionsByAccount failed: %v", err)
		}
		if len(txs) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(txs))
		}
		if txs[0].ID != "tx-002" {
			t.Errorf("expected newest first, got %s", txs[0].ID)
		}

		// Window filtering
		windowed, err := store.TransactionsByAccount(ctx, "acc-001", base.Add(time.Hour), time.Time{})
		if err != nil {
			t.Fatalf("TransactionsByAccount failed: %v", err)
		}
		if len(windowed) != 1 || windowed[0].ID != "tx-002" {
			t.Errorf("expected only tx-002 in window, got %v", windowed)
		}

		// Inverted range rejected
		_, err = store.TransactionsByAccount(ctx, "acc-001", base, base.Add(-time.Hour))
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for inverted range, got %v", err)
		}
	})

	t.Run("CountTransactionsSince", func(t *testing.T) {
		count, err := store.CountTransactionsSince(ctx, "acc-001", base.Add(time.Hour))
		if err != nil {
			t.Fatalf("CountTransactionsSince failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1, got %d", count)
		}
	})

	t.Run("FlaggedTransactions", func(t *testing.T) {
		flagged, err := store.FlaggedTransactions(ctx, 10)
		if err != nil {
			t.Fatalf("FlaggedTransactions failed: %v", err)
		}
		if len(flagged) != 1 || flagged[0].ID != "tx-001" {
			t.Errorf("expected [tx-001], got %v", flagged)
		}
	})

	t.Run("InfrastructureNodes", func(t *testing.T) {
		device := &domain.Device{
			ID: "dev-001", Type: "mobile", OS: "Android",
			FirstSeen: base.AddDate(0, -1, 0), LastSeen: base, IsTrusted: true,
		}
		if err := store.SaveDevice(ctx, device); err != nil {
			t.Fatalf("SaveDevice failed: %v", err)
		}
		gotDevice, err := store.Device(ctx, "dev-001")
		if err != nil {
			t.Fatalf("Device failed: %v", err)
		}
		if !gotDevice.IsTrusted {
			t.Error("expected trusted device")
		}

		ip := &domain.IPAddress{
			Address: "203.0.113.9", Country: "NL", IsProxy: true,
			RiskScore: 0.8, FirstSeen: base.AddDate(0, -1, 0), LastSeen: base,
		}
		if err := store.SaveIPAddress(ctx, ip); err != nil {
			t.Fatalf("SaveIPAddress failed: %v", err)
		}
		gotIP, err := store.IPAddress(ctx, "203.0.113.9")
		if err != nil {
			t.Fatalf("IPAddress failed: %v", err)
		}
		if !gotIP.IsProxy {
			t.Error("expected proxy IP")
		}

		merchant := &domain.Merchant{
			ID: "merch-001", Name: "QuickCash Ltd", Category: "crypto",
			Country: "MT", RiskLevel: domain.RiskHigh,
		}
		if err := store.SaveMerchant(ctx, merchant); err != nil {
			t.Fatalf("SaveMerchant failed: %v", err)
		}
		gotMerchant, err := store.Merchant(ctx, "merch-001")
		if err != nil {
			t.Fatalf("Merchant failed: %v", err)
		}
		if gotMerchant.RiskLevel != domain.RiskHigh {
			t.Errorf("expected high risk level, got %s", gotMerchant.RiskLevel)
		}
	})

	t.Run("RingLifecycle", func(t *testing.T) {
		ring := &domain.FraudRing{
			ID:           "ring-001",
			DetectedDate: base,
			Confidence:   0.8,
			Status:       domain.RingInvestigating,
			TotalAmount:  45000,
			PatternType:  domain.PatternCircularFlow,
			Description:  "circular flow across 3 accounts",
		}
		if err := store.SaveRing(ctx, ring); err != nil {
			t.Fatalf("SaveRing failed: %v", err)
		}

		members := []domain.EntityRef{
			{ID: "acc-001", Kind: domain.KindAccount},
			{ID: "acc-002", Kind: domain.KindAccount},
			{ID: "cust-001", Kind: domain.KindCustomer},
		}
		for _, member := range members {
			if err := store.LinkMember(ctx, "ring-001", member, "participant"); err != nil {
				t.Fatalf("LinkMember failed: %v", err)
			}
		}
		// Duplicate link is a no-op
		if err := store.LinkMember(ctx, "ring-001", members[0], "participant"); err != nil {
			t.Fatalf("repeated LinkMember failed: %v", err)
		}

		count, err := store.RingMemberCount(ctx, "ring-001")
		if err != nil {
			t.Fatalf("RingMemberCount failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 members, got %d", count)
		}

		got, err := store.Ring(ctx, "ring-001")
		if err != nil {
			t.Fatalf("Ring failed: %v", err)
		}
		if got.MemberCount != 3 {
			t.Errorf("expected member count 3, got %d", got.MemberCount)
		}

		active, err := store.ActiveRings(ctx)
		if err != nil {
			t.Fatalf("ActiveRings failed: %v", err)
		}
		if len(active) != 1 {
			t.Fatalf("expected 1 active ring, got %d", len(active))
		}

		got.Status = domain.RingResolved
		if err := store.SaveRing(ctx, got); err != nil {
			t.Fatalf("SaveRing failed: %v", err)
		}
		active, err = store.ActiveRings(ctx)
		if err != nil {
			t.Fatalf("ActiveRings failed: %v", err)
		}
		if len(active) != 0 {
			t.Errorf("expected no active rings after resolution, got %d", len(active))
		}
	})

	t.Run("AlertLifecycle", func(t *testing.T) {
		alert := &domain.Alert{
			ID:              "alert-001",
			Type:            "circular_flow",
			Severity:        domain.RiskHigh,
			CreatedAt:       base,
			RelatedEntities: []string{"acc-001", "acc-002"},
		}
		if err := store.SaveAlert(ctx, alert); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}

		unresolved, err := store.UnresolvedAlerts(ctx)
		if err != nil {
			t.Fatalf("UnresolvedAlerts failed: %v", err)
		}
		if len(unresolved) != 1 {
			t.Fatalf("expected 1 unresolved alert, got %d", len(unresolved))
		}
		if len(unresolved[0].RelatedEntities) != 2 {
			t.Errorf("related entities lost: %v", unresolved[0].RelatedEntities)
		}

		resolvedAt := base.Add(time.Hour)
		if err := store.ResolveAlert(ctx, "alert-001", resolvedAt); err != nil {
			t.Fatalf("ResolveAlert failed: %v", err)
		}
		got, err := store.Alert(ctx, "alert-001")
		if err != nil {
			t.Fatalf("Alert failed: %v", err)
		}
		if !got.IsResolved || got.ResolvedAt == nil {
			t.Error("expected alert to be resolved with timestamp")
		}

		if err := store.ResolveAlert(ctx, "no-such-alert", resolvedAt); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ResolveEntity", func(t *testing.T) {
		cases := map[string]domain.EntityKind{
			"acc-001":      domain.KindAccount,
			"cust-001":     domain.KindCustomer,
			"tx-001":       domain.KindTransaction,
			"dev-001":      domain.KindDevice,
			"merch-001":    domain.KindMerchant,
			"203.0.113.9":  domain.KindIP,
		}
		for id, want := range cases {
			ref, err := store.ResolveEntity(ctx, id)
			if err != nil {
				t.Fatalf("ResolveEntity(%s) failed: %v", id, err)
			}
			if ref.Kind != want {
				t.Errorf("ResolveEntity(%s): expected %s, got %s", id, want, ref.Kind)
			}
		}

		if _, err := store.ResolveEntity(ctx, "unknown-id"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Neighborhood", func(t *testing.T) {
		hood, err := store.Neighborhood(ctx, domain.EntityRef{ID: "acc-001", Kind: domain.KindAccount}, 2)
		if err != nil {
			t.Fatalf("Neighborhood failed: %v", err)
		}

		ids := make(map[string]bool)
		for _, node := range hood.Nodes {
			ids[node.ID] = true
		}
		// Depth 2 from acc-001 reaches its owner and both transactions,
		// and through tx-001 the counterparty account.
		for _, want := range []string{"acc-001", "cust-001", "tx-001", "tx-002", "acc-002"} {
			if !ids[want] {
				t.Errorf("expected %s in neighborhood, got %v", want, ids)
			}
		}
		if len(hood.Edges) == 0 {
			t.Error("expected edges in neighborhood")
		}

		if _, err := store.Neighborhood(ctx, domain.EntityRef{ID: "acc-001", Kind: domain.KindAccount}, 0); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for depth 0, got %v", err)
		}
	})

	t.Run("ShortestPath", func(t *testing.T) {
		path, err := store.ShortestPath(ctx, "cust-001", "acc-002", 4)
		if err != nil {
			t.Fatalf("ShortestPath failed: %v", err)
		}
		// cust-001 -> acc-001 -> tx-001 -> acc-002
		if len(path) != 4 {
			t.Fatalf("expected path of 4 steps, got %d", len(path))
		}
		if path[0].Entity.ID != "cust-001" || path[len(path)-1].Entity.ID != "acc-002" {
			t.Errorf("path endpoints wrong: %v", path)
		}
		if path[0].Relation != "" {
			t.Errorf("first step should have no inbound relation, got %q", path[0].Relation)
		}

		// Disconnected entity
		isolated := &domain.Account{
			ID: "acc-isolated", Number: "ACC-99999",
			Type: domain.AccountChecking, Status: domain.AccountActive,
			CreatedDate: base, Country: "US", Currency: "USD",
		}
		if err := store.SaveAccount(ctx, isolated); err != nil {
			t.Fatalf("SaveAccount failed: %v", err)
		}
		if _, err := store.ShortestPath(ctx, "cust-001", "acc-isolated", 4); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for disconnected pair, got %v", err)
		}
	})

	t.Run("FanOutAggregation", func(t *testing.T) {
		// acc-hub sends to 5 distinct recipients
		hub := &domain.Account{
			ID: "acc-hub", Number: "ACC-20000",
			Type: domain.AccountChecking, Status: domain.AccountActive,
			CreatedDate: base, Country: "US", Currency: "USD",
		}
		if err := store.SaveAccount(ctx, hub); err != nil {
			t.Fatalf("SaveAccount failed: %v", err)
		}
		for i := 0; i < 5; i++ {
			tx := &domain.Transaction{
				ID:            fmt.Sprintf("tx-fan-%d", i),
				Amount:        900,
				Currency:      "USD",
				Timestamp:     base.Add(time.Duration(i) * time.Minute),
				Type:          domain.TxTransfer,
				Status:        domain.TxCompleted,
				Channel:       domain.ChannelOnline,
				FromAccountID: "acc-hub",
				ToAccountID:   fmt.Sprintf("acc-recipient-%d", i),
			}
			if err := store.SaveTransaction(ctx, tx); err != nil {
				t.Fatalf("SaveTransaction failed: %v", err)
			}
		}

		summaries, err := store.FanOut(ctx, base.Add(-time.Hour), 5)
		if err != nil {
			t.Fatalf("FanOut failed: %v", err)
		}
		if len(summaries) != 1 {
			t.Fatalf("expected 1 fan-out account, got %d", len(summaries))
		}
		if summaries[0].AccountID != "acc-hub" || summaries[0].Counterparties != 5 {
			t.Errorf("unexpected summary: %+v", summaries[0])
		}
		if summaries[0].TotalAmount != 4500 {
			t.Errorf("expected total 4500, got %.2f", summaries[0].TotalAmount)
		}

		// Window excludes everything
		empty, err := store.FanOut(ctx, base.Add(time.Hour), 5)
		if err != nil {
			t.Fatalf("FanOut failed: %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("expected no results outside window, got %d", len(empty))
		}
	})

	t.Run("AccountFlows", func(t *testing.T) {
		flows, err := store.AccountFlows(ctx)
		if err != nil {
			t.Fatalf("AccountFlows failed: %v", err)
		}
		// acc-001 both receives nothing and sends; acc-002 receives only.
		// Only accounts with both directions appear.
		for _, f := range flows {
			if f.TotalIn == 0 || f.TotalOut == 0 {
				t.Errorf("account %s missing a flow direction: %+v", f.AccountID, f)
			}
		}
	})

	t.Run("SharedInfrastructure", func(t *testing.T) {
		// Two customers on one device
		other := &domain.Customer{
			ID: "cust-002", Name: "Ben Osei", Email: "ben@example.com",
			DateOfBirth:   time.Date(1990, 7, 2, 0, 0, 0, 0, time.UTC),
			CustomerSince: base.AddDate(-1, 0, 0),
			KYCStatus:     domain.KYCVerified, RiskLevel: domain.RiskLow,
		}
		if err := store.SaveCustomer(ctx, other); err != nil {
			t.Fatalf("SaveCustomer failed: %v", err)
		}
		if err := store.RecordDeviceUse(ctx, "cust-001", "dev-001", base); err != nil {
			t.Fatalf("RecordDeviceUse failed: %v", err)
		}
		if err := store.RecordDeviceUse(ctx, "cust-002", "dev-001", base); err != nil {
			t.Fatalf("RecordDeviceUse failed: %v", err)
		}

		clusters, err := store.SharedInfrastructure(ctx, domain.InfraDevice, 2)
		if err != nil {
			t.Fatalf("SharedInfrastructure failed: %v", err)
		}
		if len(clusters) != 1 {
			t.Fatalf("expected 1 device cluster, got %d", len(clusters))
		}
		if clusters[0].InfrastructureID != "dev-001" || len(clusters[0].CustomerIDs) != 2 {
			t.Errorf("unexpected cluster: %+v", clusters[0])
		}
		// Canonical order
		if clusters[0].CustomerIDs[0] != "cust-001" || clusters[0].CustomerIDs[1] != "cust-002" {
			t.Errorf("expected sorted member IDs, got %v", clusters[0].CustomerIDs)
		}

		if _, err := store.SharedInfrastructure(ctx, domain.InfraKind("bogus"), 2); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for unknown kind, got %v", err)
		}
	})
}
