package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisync/go-pharma/internal/domain/prescription"
)

type fakeDeadLetter struct {
	messages [][]byte
}

func (d *fakeDeadLetter) Publish(ctx context.Context, key string, value []byte) error {
	d.messages = append(d.messages, value)
	return nil
}

func encode(t *testing.T, eventType prescription.EventType, payload interface{}) []byte {
	t.Helper()
	raw, err := prescription.EncodeEvent(eventType, payload)
	require.NoError(t, err)
	return raw
}

func TestHandleStatusIncomplete(t *testing.T) {
	registry := NewRegistry()
	handler := NewHandler(registry, nil, nil)

	raw := encode(t, prescription.EventPrescriptionStatusUpdated, &prescription.StatusUpdatedPayload{
		GroupID: 42,
		Status:  prescription.StatusIncomplete,
	})

	require.NoError(t, handler.Handle(context.Background(), []byte("42"), raw))
	assert.Equal(t, 1, registry.Len())
}

func TestHandleStatusCompletedRemoves(t *testing.T) {
	registry := NewRegistry()
	registry.MarkIncomplete(42)
	handler := NewHandler(registry, nil, nil)

	raw := encode(t, prescription.EventPrescriptionStatusUpdated, &prescription.StatusUpdatedPayload{
		GroupID: 42,
		Status:  prescription.StatusCompleted,
	})

	require.NoError(t, handler.Handle(context.Background(), []byte("42"), raw))
	assert.Equal(t, 0, registry.Len())
}

func TestHandleUnfilledMarksIncomplete(t *testing.T) {
	registry := NewRegistry()
	handler := NewHandler(registry, nil, nil)

	raw := encode(t, prescription.EventUnfilledPrescription, &prescription.UnfilledPayload{
		GroupID:  42,
		Unfilled: []string{"Y"},
	})

	require.NoError(t, handler.Handle(context.Background(), []byte("42"), raw))
	assert.Equal(t, 1, registry.Len())
}

func TestHandleRedeliveryIdempotent(t *testing.T) {
	registry := NewRegistry()
	handler := NewHandler(registry, nil, nil)

	raw := encode(t, prescription.EventPrescriptionStatusUpdated, &prescription.StatusUpdatedPayload{
		GroupID: 42,
		Status:  prescription.StatusIncomplete,
	})

	require.NoError(t, handler.Handle(context.Background(), []byte("42"), raw))
	require.NoError(t, handler.Handle(context.Background(), []byte("42"), raw))
	assert.Equal(t, 1, registry.Len())
}

func TestHandleCreatedDoesNotMark(t *testing.T) {
	registry := NewRegistry()
	handler := NewHandler(registry, nil, nil)

	raw := encode(t, prescription.EventPrescriptionCreated, &prescription.CreatedPayload{
		GroupID: 42,
		Data:    []prescription.LineItem{{Name: "X", Quantity: 1}},
	})

	require.NoError(t, handler.Handle(context.Background(), []byte("42"), raw))
	assert.Equal(t, 0, registry.Len())
}

func TestHandleMalformedDeadLettersAndAcks(t *testing.T) {
	registry := NewRegistry()
	deadLetter := &fakeDeadLetter{}
	handler := NewHandler(registry, deadLetter, nil)

	// A nil return acknowledges the message so it cannot poison the queue.
	require.NoError(t, handler.Handle(context.Background(), []byte("42"), []byte("not json")))
	assert.Len(t, deadLetter.messages, 1)
	assert.Equal(t, 0, registry.Len())
}

func TestHandleUnknownTypeDeadLetters(t *testing.T) {
	registry := NewRegistry()
	deadLetter := &fakeDeadLetter{}
	handler := NewHandler(registry, deadLetter, nil)

	raw := []byte(`{"type":"SomethingNew","payload":{}}`)
	require.NoError(t, handler.Handle(context.Background(), []byte("42"), raw))
	assert.Len(t, deadLetter.messages, 1)
}

func TestHandleUnknownTypeWithoutPayloadDeadLetters(t *testing.T) {
	registry := NewRegistry()
	deadLetter := &fakeDeadLetter{}
	handler := NewHandler(registry, deadLetter, nil)

	raw := []byte(`{"type":"SomethingNew"}`)
	require.NoError(t, handler.Handle(context.Background(), []byte("42"), raw))
	assert.Len(t, deadLetter.messages, 1)
	assert.Equal(t, 0, registry.Len())
}

func TestHandleUnrecognizedStatusDropped(t *testing.T) {
	registry := NewRegistry()
	handler := NewHandler(registry, nil, nil)

	raw := encode(t, prescription.EventPrescriptionStatusUpdated, &prescription.StatusUpdatedPayload{
		GroupID: 42,
		Status:  "PENDING",
	})

	require.NoError(t, handler.Handle(context.Background(), []byte("42"), raw))
	assert.Equal(t, 0, registry.Len())
}
