package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finsec/fraudlens/internal/alert"
	"github.com/finsec/fraudlens/internal/bus"
	"github.com/finsec/fraudlens/internal/cache"
	"github.com/finsec/fraudlens/internal/detect"
	"github.com/finsec/fraudlens/internal/domain"
	"github.com/finsec/fraudlens/internal/graph"
	"github.com/finsec/fraudlens/internal/investigate"
	"github.com/finsec/fraudlens/internal/ring"
	"github.com/finsec/fraudlens/internal/risk"
	"github.com/finsec/fraudlens/internal/rules"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// createTestServer wires a full server over the in-memory graph store.
func createTestServer(t *testing.T) (*Server, *graph.MemoryStore) {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	store := graph.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })
	lru := cache.NewLRUCache(100)

	screener, err := rules.NewEngine(0.6)
	if err != nil {
		t.Fatalf("rules engine: %v", err)
	}
	if err := screener.LoadRule(domain.ScreeningRule{
		ID: "big-transfer", Expression: `amount > 100000.0`, Weight: 0.8, Enabled: true,
	}); err != nil {
		t.Fatalf("load rule: %v", err)
	}

	detector := detect.NewEngine(store, logger)
	scorer := risk.NewEngine(store, logger)
	rings := ring.NewService(store, eventBus, logger)
	alerts := alert.NewService(store, eventBus, logger)

	facade := investigate.New(store, lru, eventBus, detector, scorer, rings, alerts, screener, logger)
	facade.SetNowFunc(func() time.Time { return testNow })

	return NewServer(cfg, store, lru, facade, rings, alerts, detector, "test-v1"), store
}

func seedAccount(t *testing.T, store domain.GraphStore, id string, riskScore float64) {
	t.Helper()
	err := store.SaveAccount(context.Background(), &domain.Account{
		ID:          id,
		Number:      "num-" + id,
		Type:        domain.AccountChecking,
		Status:      domain.AccountActive,
		CreatedDate: testNow.AddDate(-1, 0, 0),
		RiskScore:   riskScore,
		Country:     "US",
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("seed account %s: %v", id, err)
	}
}

func doRequest(server *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewBuffer(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	server, _ := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/health", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %s", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/ready", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})
}

func TestDashboardEndpoint(t *testing.T) {
	server, store := createTestServer(t)
	ctx := context.Background()

	seedAccount(t, store, "acc-high", 85)
	if err := store.SaveAlert(ctx, &domain.Alert{
		ID: "al-1", Type: "fan_out", Severity: domain.RiskCritical, CreatedAt: testNow,
	}); err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	rr := doRequest(server, http.MethodGet, "/dashboard", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp investigate.DashboardSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.HighRiskAccounts != 1 {
		t.Errorf("expected 1 high-risk account, got %d", resp.HighRiskAccounts)
	}
	if resp.CriticalAlerts != 1 {
		t.Errorf("expected 1 critical alert, got %d", resp.CriticalAlerts)
	}
}

func TestInvestigateEndpoint(t *testing.T) {
	server, store := createTestServer(t)

	seedAccount(t, store, "acc-001", 20)

	t.Run("Found", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/investigate/account/acc-001", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var dossier investigate.Dossier
		if err := json.Unmarshal(rr.Body.Bytes(), &dossier); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if dossier.Entity.ID != "acc-001" || dossier.Entity.Kind != domain.KindAccount {
			t.Errorf("unexpected entity: %+v", dossier.Entity)
		}
		if dossier.Risk == nil {
			t.Error("expected risk score")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/investigate/account/ghost", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("BadType", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/investigate/starship/acc-001", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func TestIngestAndFlaggedEndpoints(t *testing.T) {
	server, store := createTestServer(t)

	seedAccount(t, store, "acc-001", 0)
	seedAccount(t, store, "acc-002", 0)

	t.Run("IngestClean", func(t *testing.T) {
		rr := doRequest(server, http.MethodPost, "/transactions", domain.Transaction{
			ID: "tx-clean", Amount: 100, Currency: "USD", Timestamp: testNow,
			Type: domain.TxPayment, Status: domain.TxCompleted, Channel: domain.ChannelOnline,
			FromAccountID: "acc-001", ToAccountID: "acc-002",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var result investigate.IngestResult
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if result.Flagged {
			t.Error("small payment must not flag")
		}
	})

	t.Run("IngestFlagged", func(t *testing.T) {
		rr := doRequest(server, http.MethodPost, "/transactions", domain.Transaction{
			ID: "tx-huge", Amount: 250000, Currency: "USD", Timestamp: testNow,
			Type: domain.TxTransfer, Status: domain.TxCompleted, Channel: domain.ChannelOnline,
			FromAccountID: "acc-001", ToAccountID: "acc-002",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var result investigate.IngestResult
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !result.Flagged {
			t.Error("expected flagged ingestion")
		}
	})

	t.Run("FlaggedList", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/transactions/flagged", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Count != 1 {
			t.Errorf("expected 1 flagged transaction, got %d", resp.Count)
		}
	})

	t.Run("GetTransaction", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/transactions/tx-huge", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var tx domain.Transaction
		if err := json.Unmarshal(rr.Body.Bytes(), &tx); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !tx.IsFlagged {
			t.Error("expected persisted flag")
		}
	})

	t.Run("InvalidBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString("{broken"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func TestDetectEndpoint(t *testing.T) {
	server, store := createTestServer(t)
	ctx := context.Background()

	seedAccount(t, store, "acc-a", 0)
	seedAccount(t, store, "acc-b", 0)
	seedAccount(t, store, "acc-c", 0)
	for _, tx := range []struct {
		id, from, to string
	}{
		{"tx-ab", "acc-a", "acc-b"},
		{"tx-bc", "acc-b", "acc-c"},
		{"tx-ca", "acc-c", "acc-a"},
	} {
		if err := store.SaveTransaction(ctx, &domain.Transaction{
			ID: tx.id, Amount: 500, Currency: "USD", Timestamp: testNow.Add(-time.Hour),
			Type: domain.TxTransfer, Status: domain.TxCompleted, Channel: domain.ChannelOnline,
			IsFlagged: true, FromAccountID: tx.from, ToAccountID: tx.to,
		}); err != nil {
			t.Fatalf("seed %s: %v", tx.id, err)
		}
	}

	rr := doRequest(server, http.MethodPost, "/detect", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var report investigate.SweepReport
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.PatternsDetected != 1 {
		t.Errorf("expected 1 pattern, got %d", report.PatternsDetected)
	}
	if report.AccountsEvaluated != 3 {
		t.Errorf("expected 3 accounts evaluated, got %d", report.AccountsEvaluated)
	}

	t.Run("AlertsVisible", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/alerts", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Count != 1 {
			t.Errorf("expected 1 alert, got %d", resp.Count)
		}
	})

	t.Run("RingLifecycleOverHTTP", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/rings", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var listResp struct {
			Rings []domain.FraudRing `json:"rings"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &listResp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(listResp.Rings) != 1 {
			t.Fatalf("expected 1 ring, got %d", len(listResp.Rings))
		}

		ringID := listResp.Rings[0].ID
		rr = doRequest(server, http.MethodPost, "/rings/"+ringID+"/status", RingStatusRequest{
			Status: domain.RingConfirmed, Notes: "confirmed by analyst",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var updated domain.FraudRing
		if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if updated.Status != domain.RingConfirmed {
			t.Errorf("expected confirmed, got %s", updated.Status)
		}

		rr = doRequest(server, http.MethodPost, "/rings/unknown/status", RingStatusRequest{
			Status: domain.RingConfirmed,
		})
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404 for unknown ring, got %d", rr.Code)
		}
	})
}

func TestPathEndpoint(t *testing.T) {
	server, store := createTestServer(t)
	ctx := context.Background()

	seedAccount(t, store, "acc-001", 0)
	seedAccount(t, store, "acc-002", 0)
	if err := store.SaveTransaction(ctx, &domain.Transaction{
		ID: "tx-1", Amount: 100, Currency: "USD", Timestamp: testNow,
		Type: domain.TxTransfer, Status: domain.TxCompleted, Channel: domain.ChannelOnline,
		FromAccountID: "acc-001", ToAccountID: "acc-002",
	}); err != nil {
		t.Fatalf("seed tx: %v", err)
	}

	t.Run("Connected", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/path?from=acc-001&to=acc-002", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Path []domain.PathStep `json:"path"`
			Hops int               `json:"hops"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Hops != 2 {
			t.Errorf("expected 2 hops, got %d", resp.Hops)
		}
	})

	t.Run("MissingParams", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/path?from=acc-001", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func TestSearchEndpoint(t *testing.T) {
	server, store := createTestServer(t)

	seedAccount(t, store, "acc-001", 0)

	rr := doRequest(server, http.MethodGet, "/search?q=num-acc-001", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Results []domain.GraphNode `json:"results"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "acc-001" {
		t.Errorf("expected acc-001 hit, got %v", resp.Results)
	}
}

func TestInfrastructureEndpoint(t *testing.T) {
	server, store := createTestServer(t)
	ctx := context.Background()

	if err := store.SaveDevice(ctx, &domain.Device{
		ID: "dev-1", Type: "mobile", OS: "android", FirstSeen: testNow, LastSeen: testNow,
	}); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	for _, cust := range []string{"cust-1", "cust-2", "cust-3"} {
		if err := store.SaveCustomer(ctx, &domain.Customer{
			ID: cust, Name: cust, Email: cust + "@example.com",
			CustomerSince: testNow, KYCStatus: domain.KYCVerified,
		}); err != nil {
			t.Fatalf("seed customer: %v", err)
		}
		if err := store.RecordDeviceUse(ctx, cust, "dev-1", testNow); err != nil {
			t.Fatalf("record device use: %v", err)
		}
	}

	t.Run("SharedDevice", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/infrastructure/device", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Count != 1 {
			t.Errorf("expected 1 shared-device pattern, got %d", resp.Count)
		}
	})

	t.Run("UnknownKind", func(t *testing.T) {
		rr := doRequest(server, http.MethodGet, "/infrastructure/satellite", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func TestCORSPreflight(t *testing.T) {
	server, _ := createTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/dashboard", nil)
	req.Header.Set("Origin", "https://console.example.com")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://console.example.com" {
		t.Errorf("unexpected allow-origin: %s", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}
