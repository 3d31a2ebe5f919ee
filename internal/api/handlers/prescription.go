package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/medisync/go-pharma/internal/domain/prescription"
	"github.com/medisync/go-pharma/internal/observability/metrics"
)

// PrescriptionHandler handles prescription registration and fulfillment
type PrescriptionHandler struct {
	service *prescription.Service
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewPrescriptionHandler creates a new handler
func NewPrescriptionHandler(service *prescription.Service, m *metrics.Metrics, logger *zap.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{
		service: service,
		metrics: m,
		logger:  logger,
	}
}

// Routes returns the handler routes
func (h *PrescriptionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register-prescription", h.Register)
	r.Get("/prescription/{id}", h.Get)
	r.Post("/prescription/{id}/submit", h.Submit)
	return r
}

// RegisterRequest carries line items as [name, quantity] pairs
type RegisterRequest struct {
	Data []prescription.LineItem `json:"data"`
}

// RegisterResponse is the response for registering a prescription
type RegisterResponse struct {
	PrescriptionGroupID int64 `json:"prescription_group_id"`
}

// Register handles POST /register-prescription
func (h *PrescriptionHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("prescription-handler")
	ctx, span := tracer.Start(ctx, "register_prescription")
	defer span.End()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Data) == 0 {
		h.jsonError(w, "data is required", http.StatusBadRequest)
		return
	}
	for _, item := range req.Data {
		if item.Name == "" {
			h.jsonError(w, "medicine name must not be empty", http.StatusBadRequest)
			return
		}
		if item.Quantity <= 0 {
			h.jsonError(w, "quantity must be positive", http.StatusBadRequest)
			return
		}
	}

	groupID, err := h.service.Register(ctx, req.Data)
	if err != nil {
		h.logger.Error("registration failed", zap.Error(err))
		h.jsonError(w, "failed to register prescription", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.Int64("prescription_group_id", groupID))
	h.metrics.PrescriptionsRegistered.Inc()

	h.respond(w, http.StatusCreated, RegisterResponse{PrescriptionGroupID: groupID})
}

// GetResponse is the response for fetching a prescription group
type GetResponse struct {
	PrescriptionGroupID int64                   `json:"prescription_group_id"`
	Data                []prescription.LineItem `json:"data"`
}

// Get handles GET /prescription/{id}
func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, ok := h.groupID(w, r)
	if !ok {
		return
	}

	items, err := h.service.Items(ctx, groupID)
	if err != nil {
		if errors.Is(err, prescription.ErrNotFound) {
			h.jsonError(w, "prescription not found", http.StatusNotFound)
			return
		}
		h.logger.Error("fetch failed", zap.Int64("group_id", groupID), zap.Error(err))
		h.jsonError(w, "failed to fetch prescription", http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, GetResponse{
		PrescriptionGroupID: groupID,
		Data:                items,
	})
}

// SubmitResponse is the response for a fulfillment submission
type SubmitResponse struct {
	PrescriptionGroupID int64    `json:"prescription_group_id"`
	Status              string   `json:"status"`
	Filled              []string `json:"filled"`
	Unfilled            []string `json:"unfilled"`
}

// Submit handles POST /prescription/{id}/submit
func (h *PrescriptionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("prescription-handler")
	ctx, span := tracer.Start(ctx, "submit_fulfillment")
	defer span.End()

	groupID, ok := h.groupID(w, r)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("prescription_group_id", groupID))

	result, err := h.service.SubmitFulfillment(ctx, groupID)
	if err != nil {
		switch {
		case errors.Is(err, prescription.ErrNotFound):
			h.jsonError(w, "prescription not found", http.StatusNotFound)
		case errors.Is(err, prescription.ErrCatalogUnavailable):
			h.logger.Warn("catalog unavailable", zap.Int64("group_id", groupID), zap.Error(err))
			h.jsonError(w, "catalog service unavailable", http.StatusServiceUnavailable)
		default:
			h.logger.Error("submission failed", zap.Int64("group_id", groupID), zap.Error(err))
			h.jsonError(w, "failed to submit fulfillment", http.StatusInternalServerError)
		}
		return
	}
	h.metrics.FulfillmentsSubmitted.WithLabelValues(string(result.Status)).Inc()

	h.respond(w, http.StatusOK, SubmitResponse{
		PrescriptionGroupID: result.GroupID,
		Status:              string(result.Status),
		Filled:              result.Filled,
		Unfilled:            result.Unfilled,
	})
}

// groupID parses the {id} path parameter, writing a 400 on failure.
func (h *PrescriptionHandler) groupID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	groupID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || groupID <= 0 {
		h.jsonError(w, "invalid prescription group id", http.StatusBadRequest)
		return 0, false
	}
	return groupID, true
}

func (h *PrescriptionHandler) respond(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (h *PrescriptionHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
