package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/medisync/go-pharma/internal/domain/prescription"
)

// DeadLetterer forwards unprocessable messages off the main queue.
type DeadLetterer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Handler applies fulfillment events to the incomplete registry. Every event
// is handled idempotently: at-least-once delivery must be assumed.
type Handler struct {
	registry   *Registry
	deadLetter DeadLetterer
	logger     *zap.Logger
}

// NewHandler creates an event handler. deadLetter may be nil, in which case
// malformed messages are only logged and dropped.
func NewHandler(registry *Registry, deadLetter DeadLetterer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry:   registry,
		deadLetter: deadLetter,
		logger:     logger,
	}
}

// Handle processes one bus message. It never returns an error for malformed
// or unrecognized payloads: those are dead-lettered and acknowledged so they
// cannot poison the queue.
func (h *Handler) Handle(ctx context.Context, key, value []byte) error {
	event, err := prescription.DecodeEvent(value)
	if err != nil {
		h.logger.Error("malformed event dropped", zap.ByteString("key", key), zap.Error(err))
		h.sendToDeadLetter(ctx, key, value)
		return nil
	}

	switch {
	case event.IsUnknown():
		h.logger.Warn("unrecognized event type dropped",
			zap.String("event_type", string(event.Type)),
			zap.ByteString("key", key),
		)
		h.sendToDeadLetter(ctx, key, value)

	case event.Created != nil:
		// Registration alone says nothing about fulfillment.
		h.logger.Debug("prescription created",
			zap.Int64("group_id", event.Created.GroupID),
			zap.Int("items", len(event.Created.Data)),
		)

	case event.StatusUpdated != nil:
		h.applyStatus(event.StatusUpdated)

	case event.Unfilled != nil:
		h.registry.MarkIncomplete(event.Unfilled.GroupID)
		h.logger.Info("group marked incomplete",
			zap.Int64("group_id", event.Unfilled.GroupID),
			zap.Strings("unfilled_medicines", event.Unfilled.Unfilled),
		)
	}
	return nil
}

func (h *Handler) applyStatus(payload *prescription.StatusUpdatedPayload) {
	switch payload.Status {
	case prescription.StatusIncomplete:
		h.registry.MarkIncomplete(payload.GroupID)
		h.logger.Info("group marked incomplete", zap.Int64("group_id", payload.GroupID))
	case prescription.StatusCompleted:
		if h.registry.MarkCompleted(payload.GroupID) {
			h.logger.Info("group completed, dropped from registry",
				zap.Int64("group_id", payload.GroupID))
		}
	default:
		h.logger.Warn("status update with unrecognized status dropped",
			zap.Int64("group_id", payload.GroupID),
			zap.String("status", string(payload.Status)),
		)
	}
}

func (h *Handler) sendToDeadLetter(ctx context.Context, key, value []byte) {
	if h.deadLetter == nil {
		return
	}
	if err := h.deadLetter.Publish(ctx, string(key), value); err != nil {
		h.logger.Error("dead letter publish failed", zap.Error(err))
	}
}
