package termsync

import (
	"sort"
	"time"
)

// historyState drives the on-demand scrollback reload state machine.
// Two states: at-bottom and browsing-history. A reload fires at most
// once per excursion away from the bottom, gated by availability, an
// in-flight flag, and a cooldown since the previous request.
type historyState struct {
	available     bool
	requested     bool
	inFlight      bool
	lastRequestAt time.Time
	savedOffset   int
	frames        []liveFrame
}

// liveFrame is a live-stream frame buffered while a reload is in
// flight, keyed by the producer's sequence number.
type liveFrame struct {
	seq  int64
	data string
}

// bufferFrame queues a racing live frame. The queue shares the pending
// buffer's entry bound; frames evicted here are almost certainly
// covered by the reload anyway.
func (h *historyState) bufferFrame(seq int64, data string) {
	h.frames = append(h.frames, liveFrame{seq: seq, data: data})
	if len(h.frames) > pendingMaxEntries {
		h.frames = append([]liveFrame(nil), h.frames[len(h.frames)-pendingTrimTo:]...)
	}
}

// framesAfter returns buffered frames with a sequence number strictly
// greater than seq, in sequence order, and clears the queue. Frames at
// or below seq are duplicates of content the reload already contains.
func (h *historyState) framesAfter(seq int64) []liveFrame {
	frames := h.frames
	h.frames = nil
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].seq < frames[j].seq })
	out := frames[:0]
	for _, f := range frames {
		if f.seq > seq {
			out = append(out, f)
		}
	}
	return out
}

// atBottom re-arms the excursion trigger without resetting the
// cooldown; rapid oscillation around the bottom must not re-fire
// requests.
func (h *historyState) atBottom() {
	h.requested = false
}

// canRequest reports whether a reload may fire now.
func (h *historyState) canRequest(now time.Time, cooldown time.Duration) bool {
	if !h.available || h.requested || h.inFlight {
		return false
	}
	if !h.lastRequestAt.IsZero() && now.Sub(h.lastRequestAt) < cooldown {
		return false
	}
	return true
}
