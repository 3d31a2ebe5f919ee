package prescription

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// Status is the fulfillment status of a prescription group. It is computed
// from current catalog state on every submission, never stored.
type Status string

const (
	StatusCompleted  Status = "COMPLETED"
	StatusIncomplete Status = "INCOMPLETE"
)

// LineItem is one (medicine name, quantity) pair. On the wire it serializes
// as a two-element array, e.g. ["ASPIRIN", 2].
type LineItem struct {
	Name     string
	Quantity int
}

// MarshalJSON encodes the item as [name, quantity].
func (li LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{li.Name, li.Quantity})
}

// UnmarshalJSON decodes a [name, quantity] pair.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("line item must be a [name, quantity] pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &li.Name); err != nil {
		return fmt.Errorf("line item name: %w", err)
	}
	if err := json.Unmarshal(pair[1], &li.Quantity); err != nil {
		return fmt.Errorf("line item quantity: %w", err)
	}
	return nil
}

// Fulfillment is the result of evaluating a group against the catalog.
type Fulfillment struct {
	GroupID  int64
	Status   Status
	Filled   []string
	Unfilled []string
}

// Evaluate computes per-item fulfillment by catalog existence: an item is
// filled iff its name is present in the catalog at query time. The group is
// COMPLETED iff nothing is unfilled. Duplicate names count once.
func Evaluate(groupID int64, items []LineItem, existing map[string]bool) *Fulfillment {
	f := &Fulfillment{
		GroupID:  groupID,
		Filled:   []string{},
		Unfilled: []string{},
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item.Name] {
			continue
		}
		seen[item.Name] = true
		if existing[item.Name] {
			f.Filled = append(f.Filled, item.Name)
		} else {
			f.Unfilled = append(f.Unfilled, item.Name)
		}
	}

	if len(f.Unfilled) == 0 {
		f.Status = StatusCompleted
	} else {
		f.Status = StatusIncomplete
	}
	return f
}

// groupIDMin and groupIDMax bound the 10-digit identifier space.
const (
	groupIDMin = 1_000_000_000
	groupIDMax = 9_999_999_999
)

// NewGroupID returns a random 10-digit identifier. Uniqueness is enforced by
// the store; callers retry on collision.
func NewGroupID() int64 {
	return groupIDMin + rand.Int64N(groupIDMax-groupIDMin+1)
}
