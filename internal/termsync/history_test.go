package termsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================
// historyState Tests
// ============================================================

// TestHistoryCanRequestGates verifies every gate on a reload request:
// availability, once-per-excursion, in-flight, and cooldown.
func TestHistoryCanRequestGates(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cooldown := 2 * time.Second

	var h historyState
	assert.False(t, h.canRequest(now, cooldown), "not available yet")

	h.available = true
	assert.True(t, h.canRequest(now, cooldown))

	h.requested = true
	assert.False(t, h.canRequest(now, cooldown), "once per excursion")

	h.atBottom()
	assert.True(t, h.canRequest(now, cooldown), "returning to bottom re-arms")

	h.inFlight = true
	assert.False(t, h.canRequest(now, cooldown), "reload in flight")
	h.inFlight = false

	h.lastRequestAt = now.Add(-time.Second)
	assert.False(t, h.canRequest(now, cooldown), "inside cooldown")
	assert.True(t, h.canRequest(now.Add(time.Second), cooldown), "cooldown elapsed")
}

// TestHistoryAtBottomKeepsCooldown verifies oscillating around the
// bottom does not reset the request clock.
func TestHistoryAtBottomKeepsCooldown(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h := historyState{available: true, requested: true, lastRequestAt: now}

	h.atBottom()
	assert.False(t, h.canRequest(now.Add(time.Second), 2*time.Second),
		"cooldown still counts from the last request")
}

// TestHistoryFramesAfterDedup verifies merge keeps only frames newer
// than the reload's sequence number, in order.
func TestHistoryFramesAfterDedup(t *testing.T) {
	var h historyState
	h.bufferFrame(12, "twelve")
	h.bufferFrame(10, "ten")
	h.bufferFrame(11, "eleven")

	frames := h.framesAfter(10)
	assert.Len(t, frames, 2)
	assert.Equal(t, "eleven", frames[0].data)
	assert.Equal(t, "twelve", frames[1].data)
	assert.Nil(t, h.frames, "merge clears the queue")
}

// TestHistoryFramesAfterAllCovered verifies a reload that covers every
// buffered frame yields nothing to replay.
func TestHistoryFramesAfterAllCovered(t *testing.T) {
	var h historyState
	h.bufferFrame(1, "a")
	h.bufferFrame(2, "b")

	assert.Empty(t, h.framesAfter(2))
}

// TestHistoryBufferFrameCap verifies the racing-frame queue is bounded.
func TestHistoryBufferFrameCap(t *testing.T) {
	var h historyState
	for i := 0; i < pendingMaxEntries+1; i++ {
		h.bufferFrame(int64(i), "x")
	}
	assert.Len(t, h.frames, pendingTrimTo)
	assert.Equal(t, int64(pendingMaxEntries+1-pendingTrimTo), h.frames[0].seq)
}
