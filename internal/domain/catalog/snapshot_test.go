package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotContains(t *testing.T) {
	snap := NewSnapshot("snap-1", map[string]int{"ASPIRIN": 25, "PARACETAMOL": 30})

	assert.True(t, snap.Contains("ASPIRIN"))
	assert.False(t, snap.Contains("IBUPROFEN"))
	// Existence lookups are exact; only similarity search folds case.
	assert.False(t, snap.Contains("aspirin"))
}

func TestSnapshotNilSafe(t *testing.T) {
	var snap *Snapshot

	assert.False(t, snap.Contains("ASPIRIN"))
	assert.Nil(t, snap.Names())
	assert.Equal(t, 0, snap.Len())
}

func TestRankSimilarOrdering(t *testing.T) {
	names := []string{"DISPRIN ASPIRIN PLUS", "ASPIRIN FORTE", "ASPIRIN", "BABY ASPIRIN"}

	got := RankSimilar(names, "aspirin", 10)

	// Prefix matches first, then shorter, then alphabetical.
	assert.Equal(t, []string{"ASPIRIN", "ASPIRIN FORTE", "BABY ASPIRIN", "DISPRIN ASPIRIN PLUS"}, got)
}

func TestRankSimilarLimit(t *testing.T) {
	names := []string{"ASPIRIN", "ASPIRIN FORTE", "BABY ASPIRIN"}

	got := RankSimilar(names, "ASPIRIN", 2)

	assert.Equal(t, []string{"ASPIRIN", "ASPIRIN FORTE"}, got)
}

func TestRankSimilarNoMatch(t *testing.T) {
	names := []string{"ASPIRIN", "PARACETAMOL"}

	assert.Empty(t, RankSimilar(names, "IBUPROFEN", 10))
	assert.Empty(t, RankSimilar(names, "   ", 10))
}
