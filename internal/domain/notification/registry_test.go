package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkIncompleteIdempotent(t *testing.T) {
	r := NewRegistry()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	r.now = func() time.Time { return current }

	r.MarkIncomplete(42)
	current = base.Add(time.Hour)
	r.MarkIncomplete(42)

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, base, snapshot[0].FirstMarked)
	assert.Equal(t, base.Add(time.Hour), snapshot[0].LastMarked)
}

func TestMarkCompletedRemoves(t *testing.T) {
	r := NewRegistry()

	r.MarkIncomplete(42)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.MarkCompleted(42))
	assert.Equal(t, 0, r.Len())

	// Completing an untracked group is a no-op.
	assert.False(t, r.MarkCompleted(42))
	assert.False(t, r.MarkCompleted(99))
}

func TestSnapshotOrdering(t *testing.T) {
	r := NewRegistry()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	r.now = func() time.Time { return current }

	r.MarkIncomplete(300)
	current = base.Add(time.Minute)
	r.MarkIncomplete(100)
	r.MarkIncomplete(200)

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 3)
	// Ordered by first observation, then group id on ties.
	assert.Equal(t, int64(300), snapshot[0].GroupID)
	assert.Equal(t, int64(100), snapshot[1].GroupID)
	assert.Equal(t, int64(200), snapshot[2].GroupID)
}

func TestSnapshotEmpty(t *testing.T) {
	r := NewRegistry()

	snapshot := r.Snapshot()
	assert.NotNil(t, snapshot)
	assert.Empty(t, snapshot)
}
