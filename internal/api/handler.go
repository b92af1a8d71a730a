package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finsec/fraudlens/internal/alert"
	"github.com/finsec/fraudlens/internal/detect"
	"github.com/finsec/fraudlens/internal/domain"
	"github.com/finsec/fraudlens/internal/investigate"
	"github.com/finsec/fraudlens/internal/ring"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	store    domain.GraphStore
	cache    domain.Cache
	facade   *investigate.Facade
	rings    *ring.Service
	alerts   *alert.Service
	detector *detect.Engine
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(store domain.GraphStore, cache domain.Cache, facade *investigate.Facade,
	rings *ring.Service, alerts *alert.Service, detector *detect.Engine, version string) *Handler {
	return &Handler{
		store:    store,
		cache:    cache,
		facade:   facade,
		rings:    rings,
		alerts:   alerts,
		detector: detector,
		version:  version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// Dashboard handles GET /dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.facade.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Investigate handles GET /investigate/{type}/{id}.
func (h *Handler) Investigate(w http.ResponseWriter, r *http.Request) {
	entityType := domain.EntityKind(chi.URLParam(r, "type"))
	entityID := chi.URLParam(r, "id")

	dossier, err := h.facade.Investigate(r.Context(), entityID, entityType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dossier)
}

// Detect handles POST /detect: the full pattern-detection sweep.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	report, err := h.facade.DetectFraudPatterns(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HighRiskAccounts handles GET /accounts/high-risk.
func (h *Handler) HighRiskAccounts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
		return
	}

	accounts, err := h.facade.HighRiskAccounts(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// FlaggedTransactions handles GET /transactions/flagged.
func (h *Handler) FlaggedTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
		return
	}

	txs, err := h.facade.FlaggedTransactions(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}

// IngestTransaction handles POST /transactions: screen and persist.
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}

	result, err := h.facade.IngestTransaction(r.Context(), &tx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetTransaction handles GET /transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.store.Transaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// ReportRequest is the request body for POST /reports.
type ReportRequest struct {
	EntityID   string            `json:"entityId"`
	EntityType domain.EntityKind `json:"entityType"`
}

// CreateReport handles POST /reports.
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}

	report, err := h.facade.CreateReport(r.Context(), req.EntityID, req.EntityType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// ListRings handles GET /rings: active fraud rings.
func (h *Handler) ListRings(w http.ResponseWriter, r *http.Request) {
	rings, err := h.rings.Active(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rings": rings,
		"count": len(rings),
	})
}

// GetRing handles GET /rings/{id}.
func (h *Handler) GetRing(w http.ResponseWriter, r *http.Request) {
	ring, err := h.rings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ring)
}

// RingStatusRequest is the request body for POST /rings/{id}/status.
type RingStatusRequest struct {
	Status domain.RingStatus `json:"status"`
	Notes  string            `json:"notes,omitempty"`
}

// UpdateRingStatus handles POST /rings/{id}/status.
func (h *Handler) UpdateRingStatus(w http.ResponseWriter, r *http.Request) {
	var req RingStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON request body"})
		return
	}

	ring, err := h.rings.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Notes, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ring)
}

// ListAlerts handles GET /alerts: unresolved alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.Unresolved(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ResolveAlert handles POST /alerts/{id}/resolve.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.alerts.Resolve(r.Context(), chi.URLParam(r, "id"), time.Now().UTC()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"resolved": "true"})
}

// ConnectionPath handles GET /path?from=&to=.
func (h *Handler) ConnectionPath(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	path, err := h.facade.ConnectionPath(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path": path,
		"hops": len(path) - 1,
	})
}

// SharedInfrastructure handles GET /infrastructure/{kind}.
func (h *Handler) SharedInfrastructure(w http.ResponseWriter, r *http.Request) {
	kind := domain.InfraKind(chi.URLParam(r, "kind"))

	minUsers, err := queryInt(r, "minUsers")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "minUsers must be an integer"})
		return
	}

	patterns, err := h.detector.SharedInfrastructure(r.Context(), detect.InfraParams{
		Kind:     kind,
		MinUsers: minUsers,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": patterns,
		"count":    len(patterns),
	})
}

// Search handles GET /search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.facade.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// writeError maps domain sentinel errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
