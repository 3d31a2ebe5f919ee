// Package handlers provides HTTP handlers for the workflow services.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/medisync/go-pharma/internal/domain/catalog"
	"github.com/medisync/go-pharma/internal/observability/metrics"
)

// defaultSimilarLimit bounds similarity results when no limit is given.
const defaultSimilarLimit = 10

// PriceFetcher retrieves the current medicine price list.
type PriceFetcher interface {
	FetchLatest(ctx context.Context) (map[string]int, error)
}

// CatalogHandler handles catalog lookup and refresh endpoints
type CatalogHandler struct {
	service *catalog.Service
	fetcher PriceFetcher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCatalogHandler creates a new handler
func NewCatalogHandler(service *catalog.Service, fetcher PriceFetcher, m *metrics.Metrics, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		fetcher: fetcher,
		metrics: m,
		logger:  logger,
	}
}

// Routes returns the handler routes
func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/find-medicine/{name}", h.FindMedicine)
	r.Post("/find-medicines", h.FindMedicines)
	r.Get("/similar-medicines", h.SimilarMedicines)
	r.Post("/update-medicine-prices", h.UpdatePrices)
	return r
}

// FindResponse is the response for a single existence lookup
type FindResponse struct {
	MedicineName string `json:"medicine_name"`
	Exists       bool   `json:"exists"`
	Source       string `json:"source"`
	CacheError   string `json:"cache_error,omitempty"`
}

// FindMedicine handles GET /find-medicine/{name}
func (h *CatalogHandler) FindMedicine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	tracer := otel.Tracer("catalog-handler")
	ctx, span := tracer.Start(ctx, "find_medicine")
	defer span.End()
	span.SetAttributes(attribute.String("medicine_name", name))

	result, err := h.service.Exists(ctx, name)
	if err != nil {
		h.logger.Error("existence lookup failed", zap.String("name", name), zap.Error(err))
		h.jsonError(w, "catalog lookup failed", http.StatusInternalServerError)
		return
	}
	h.metrics.CatalogLookups.WithLabelValues(result.Source).Inc()

	h.respond(w, http.StatusOK, FindResponse{
		MedicineName: result.Name,
		Exists:       result.Exists,
		Source:       result.Source,
		CacheError:   result.CacheError,
	})
}

// FindBatchRequest is the request body for a batch existence lookup
type FindBatchRequest struct {
	Names []string `json:"names"`
}

// FindBatchResponse is the response for a batch existence lookup
type FindBatchResponse struct {
	Existing    []string         `json:"existing"`
	NonExisting []string         `json:"non_existing"`
	Summary     FindBatchSummary `json:"summary"`
}

// FindBatchSummary carries aggregate counts for a batch lookup
type FindBatchSummary struct {
	CacheHits     int `json:"cache_hits"`
	DatabaseHits  int `json:"database_hits"`
	TotalSearched int `json:"total_searched"`
	TotalFound    int `json:"total_found"`
}

// FindMedicines handles POST /find-medicines
func (h *CatalogHandler) FindMedicines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req FindBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Names) == 0 {
		h.jsonError(w, "names is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.ExistsBatch(ctx, req.Names)
	if err != nil {
		h.logger.Error("batch lookup failed", zap.Int("names", len(req.Names)), zap.Error(err))
		h.jsonError(w, "catalog lookup failed", http.StatusInternalServerError)
		return
	}

	for range result.CacheHits {
		h.metrics.CatalogLookups.WithLabelValues(catalog.SourceCache).Inc()
	}
	for range result.DatabaseHits {
		h.metrics.CatalogLookups.WithLabelValues(catalog.SourceDatabase).Inc()
	}

	h.respond(w, http.StatusOK, FindBatchResponse{
		Existing:    result.Existing,
		NonExisting: result.NonExisting,
		Summary: FindBatchSummary{
			CacheHits:     len(result.CacheHits),
			DatabaseHits:  len(result.DatabaseHits),
			TotalSearched: result.TotalSearched,
			TotalFound:    len(result.Existing),
		},
	})
}

// SimilarResponse is the response for a similarity search
type SimilarResponse struct {
	SimilarMedicines []string `json:"similar_medicines"`
	Source           string   `json:"source"`
	CacheError       string   `json:"cache_error,omitempty"`
}

// SimilarMedicines handles GET /similar-medicines
func (h *CatalogHandler) SimilarMedicines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	term := r.URL.Query().Get("search")
	if term == "" {
		h.jsonError(w, "search is required", http.StatusBadRequest)
		return
	}

	limit := defaultSimilarLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	result, err := h.service.Similar(ctx, term, limit)
	if err != nil {
		h.logger.Error("similarity search failed", zap.String("term", term), zap.Error(err))
		h.jsonError(w, "catalog lookup failed", http.StatusInternalServerError)
		return
	}
	h.metrics.CatalogLookups.WithLabelValues(result.Source).Inc()

	h.respond(w, http.StatusOK, SimilarResponse{
		SimilarMedicines: result.Names,
		Source:           result.Source,
		CacheError:       result.CacheError,
	})
}

// RefreshResponse is the response for a catalog refresh
type RefreshResponse struct {
	Medicines      int  `json:"medicines"`
	Saved          bool `json:"saved"`
	CacheCleared   bool `json:"cache_cleared"`
	Deleted        int  `json:"old_snapshots_deleted"`
	DeleteFailures int  `json:"delete_failures"`
}

// UpdatePrices handles POST /update-medicine-prices. It downloads the current
// price list and installs it as the new catalog snapshot. A refresh that stored
// the snapshot but could not clear the cache still returns 200 with the
// degraded flags set.
func (h *CatalogHandler) UpdatePrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tracer := otel.Tracer("catalog-handler")
	ctx, span := tracer.Start(ctx, "update_medicine_prices")
	defer span.End()

	medicines, err := h.fetcher.FetchLatest(ctx)
	if err != nil {
		h.logger.Error("price list fetch failed", zap.Error(err))
		h.jsonError(w, "price list unavailable", http.StatusBadGateway)
		return
	}

	result := h.service.Refresh(ctx, medicines)
	h.metrics.CatalogRefreshes.Inc()

	h.respond(w, http.StatusOK, RefreshResponse{
		Medicines:      result.Count,
		Saved:          result.Saved,
		CacheCleared:   result.CacheCleared,
		Deleted:        result.Deleted,
		DeleteFailures: result.DeleteFailures,
	})
}

func (h *CatalogHandler) respond(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (h *CatalogHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
