package prescription

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// ErrCatalogUnavailable indicates the catalog service could not be reached
// after bounded retries. Surfaced to callers as a distinct outcome, not a
// generic failure.
var ErrCatalogUnavailable = errors.New("catalog service unavailable")

// registerAttempts bounds group id regeneration on collisions.
const registerAttempts = 5

// GroupStore persists prescription groups. Implemented by Repository.
type GroupStore interface {
	CreateGroup(ctx context.Context, groupID int64, items []LineItem) error
	ItemsByGroup(ctx context.Context, groupID int64) ([]LineItem, error)
}

// Publisher delivers fulfillment events to the durable bus, keyed so that
// events about the same group preserve order.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// CatalogBatch is the catalog's answer to a batch existence check.
type CatalogBatch struct {
	Existing    []string
	NonExisting []string
}

// CatalogChecker answers batch existence queries against the catalog service.
type CatalogChecker interface {
	ExistsBatch(ctx context.Context, names []string) (*CatalogBatch, error)
}

// Service registers prescription groups and evaluates their fulfillment.
type Service struct {
	store     GroupStore
	publisher Publisher
	catalog   CatalogChecker
	logger    *zap.Logger
}

// NewService creates a prescription service.
func NewService(store GroupStore, publisher Publisher, catalog CatalogChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		catalog:   catalog,
		logger:    logger,
	}
}

// Register persists a new prescription group under a fresh 10-digit id and
// announces it on the bus. Registration succeeds or fails atomically with the
// store write; the announcement is a best-effort side effect and its failure
// is logged, never propagated.
func (s *Service) Register(ctx context.Context, items []LineItem) (int64, error) {
	if len(items) == 0 {
		return 0, errors.New("prescription must contain at least one line item")
	}

	var groupID int64
	var err error
	for attempt := 0; attempt < registerAttempts; attempt++ {
		groupID = NewGroupID()
		err = s.store.CreateGroup(ctx, groupID, items)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateGroup) {
			return 0, fmt.Errorf("register group: %w", err)
		}
		s.logger.Warn("group id collision, regenerating", zap.Int64("group_id", groupID))
	}
	if err != nil {
		return 0, fmt.Errorf("register group: %w", err)
	}

	s.publish(ctx, groupID, EventPrescriptionCreated, &CreatedPayload{
		GroupID: groupID,
		Data:    items,
	})

	s.logger.Info("prescription registered",
		zap.Int64("group_id", groupID),
		zap.Int("items", len(items)),
	)
	return groupID, nil
}

// Items returns the line items of a group.
func (s *Service) Items(ctx context.Context, groupID int64) ([]LineItem, error) {
	return s.store.ItemsByGroup(ctx, groupID)
}

// SubmitFulfillment recomputes the fulfillment status of a group from current
// catalog state. It always publishes the resulting status, and additionally an
// UnfilledPrescription event when anything is left unfilled.
func (s *Service) SubmitFulfillment(ctx context.Context, groupID int64) (*Fulfillment, error) {
	items, err := s.store.ItemsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}

	batch, err := s.catalog.ExistsBatch(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("check catalog for group %d: %w", groupID, err)
	}

	existing := make(map[string]bool, len(batch.Existing))
	for _, name := range batch.Existing {
		existing[name] = true
	}

	f := Evaluate(groupID, items, existing)

	s.publish(ctx, groupID, EventPrescriptionStatusUpdated, &StatusUpdatedPayload{
		GroupID: groupID,
		Status:  f.Status,
	})
	if len(f.Unfilled) > 0 {
		s.publish(ctx, groupID, EventUnfilledPrescription, &UnfilledPayload{
			GroupID:  groupID,
			Unfilled: f.Unfilled,
		})
	}

	s.logger.Info("fulfillment submitted",
		zap.Int64("group_id", groupID),
		zap.String("status", string(f.Status)),
		zap.Int("unfilled", len(f.Unfilled)),
	)
	return f, nil
}

// publish is fire-and-forget relative to the request path.
func (s *Service) publish(ctx context.Context, groupID int64, eventType EventType, payload interface{}) {
	value, err := EncodeEvent(eventType, payload)
	if err != nil {
		s.logger.Error("event encode failed",
			zap.String("event_type", string(eventType)),
			zap.Int64("group_id", groupID),
			zap.Error(err),
		)
		return
	}

	key := strconv.FormatInt(groupID, 10)
	if err := s.publisher.Publish(ctx, key, value); err != nil {
		s.logger.Error("event publish failed",
			zap.String("event_type", string(eventType)),
			zap.Int64("group_id", groupID),
			zap.Error(err),
		)
	}
}
