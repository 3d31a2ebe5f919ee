package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medisync/go-pharma/internal/domain/notification"
)

// NotificationHandler exposes the incomplete-prescription registry
type NotificationHandler struct {
	registry *notification.Registry
	logger   *zap.Logger
}

// NewNotificationHandler creates a new handler
func NewNotificationHandler(registry *notification.Registry, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		registry: registry,
		logger:   logger,
	}
}

// Routes returns the handler routes
func (h *NotificationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/notifications", h.List)
	return r
}

// ListResponse is the response for listing incomplete prescriptions
type ListResponse struct {
	Count      int                  `json:"count"`
	Incomplete []notification.Entry `json:"incomplete"`
}

// List handles GET /notifications. An empty registry is a valid answer, not
// an error.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListResponse{
		Count:      len(snapshot),
		Incomplete: snapshot,
	})
}
