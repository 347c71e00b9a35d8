package termsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================
// seedState Tests
// ============================================================

// TestSeedStateStoreAndAssemble verifies chunks assemble in index order
// regardless of arrival order.
func TestSeedStateStoreAndAssemble(t *testing.T) {
	s := newSeedState(3)
	s.store(2, "c")
	s.store(0, "a")
	s.store(1, "b")

	assert.True(t, s.complete())
	assert.Equal(t, "abc", s.assemble())
}

// TestSeedStateClampsIndices verifies malformed indices land on the
// nearest valid slot instead of wedging assembly.
func TestSeedStateClampsIndices(t *testing.T) {
	s := newSeedState(2)

	idx := s.store(-3, "a")
	assert.Equal(t, 0, idx)

	idx = s.store(7, "b")
	assert.Equal(t, 1, idx, "index past the end clamps to the last slot")

	assert.True(t, s.complete())
	assert.Equal(t, "ab", s.assemble())
}

// TestSeedStateIncomplete verifies a missing chunk keeps the state
// incomplete and assemble skips the hole.
func TestSeedStateIncomplete(t *testing.T) {
	s := newSeedState(3)
	s.store(0, "a")
	s.store(2, "c")

	assert.False(t, s.complete())
	assert.Equal(t, "ac", s.assemble())
}

// TestSeedStatePartialThreshold verifies the 80% cutoff: 4 of 5 renders,
// 3 of 5 does not.
func TestSeedStatePartialThreshold(t *testing.T) {
	s := newSeedState(5)
	s.store(0, "a")
	s.store(1, "b")
	s.store(2, "c")
	assert.False(t, s.meetsPartialThreshold(), "3 of 5 is below 80%")

	s.store(3, "d")
	assert.True(t, s.meetsPartialThreshold(), "4 of 5 meets 80%")
}

// TestSeedStateDuplicateChunk verifies a re-sent chunk overwrites its
// slot without double counting.
func TestSeedStateDuplicateChunk(t *testing.T) {
	s := newSeedState(2)
	s.store(0, "old")
	s.store(0, "new")

	assert.False(t, s.complete())
	assert.Equal(t, "new", s.assemble())
}
