// Package prescription implements prescription groups and their fulfillment events.
package prescription

import (
	"encoding/json"
	"fmt"
)

// EventType identifies a fulfillment event on the bus.
type EventType string

const (
	EventPrescriptionCreated       EventType = "PrescriptionCreated"
	EventPrescriptionStatusUpdated EventType = "PrescriptionStatusUpdated"
	EventUnfilledPrescription      EventType = "UnfilledPrescription"
)

// Envelope is the bus payload: {"type": ..., "payload": {...}}.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// CreatedPayload announces a newly registered prescription group.
type CreatedPayload struct {
	GroupID int64      `json:"prescription_group_id"`
	Data    []LineItem `json:"data"`
}

// StatusUpdatedPayload carries the computed fulfillment status of a group.
type StatusUpdatedPayload struct {
	GroupID int64  `json:"prescription_group_id"`
	Status  Status `json:"status"`
}

// UnfilledPayload lists the medicines a submission could not fill.
type UnfilledPayload struct {
	GroupID  int64    `json:"prescription_group_id"`
	Unfilled []string `json:"unfilled_medicines"`
}

// Event is the decoded closed variant over the known event kinds. Exactly one
// of the payload pointers is set for a recognized type; unrecognized types are
// flagged so consumers can drop them without failing.
type Event struct {
	Type          EventType
	Created       *CreatedPayload
	StatusUpdated *StatusUpdatedPayload
	Unfilled      *UnfilledPayload

	unknown bool
}

// IsUnknown reports whether the event type was not recognized. The flag is
// keyed on the type alone, so an unrecognized envelope without a payload is
// still unknown.
func (e *Event) IsUnknown() bool { return e.unknown }

// GroupID returns the prescription group the event refers to, or 0 for
// unknown events.
func (e *Event) GroupID() int64 {
	switch {
	case e.Created != nil:
		return e.Created.GroupID
	case e.StatusUpdated != nil:
		return e.StatusUpdated.GroupID
	case e.Unfilled != nil:
		return e.Unfilled.GroupID
	}
	return 0
}

// DecodeEvent parses a bus message into the closed variant type.
func DecodeEvent(data []byte) (*Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	event := &Event{Type: env.Type}
	switch env.Type {
	case EventPrescriptionCreated:
		var p CreatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		event.Created = &p
	case EventPrescriptionStatusUpdated:
		var p StatusUpdatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		event.StatusUpdated = &p
	case EventUnfilledPrescription:
		var p UnfilledPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		event.Unfilled = &p
	default:
		event.unknown = true
	}
	return event, nil
}

// EncodeEvent wraps a payload in the bus envelope.
func EncodeEvent(eventType EventType, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}
