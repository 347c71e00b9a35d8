// Package emulator hosts one terminal-emulator instance per attached
// session view. Escape-sequence interpretation is delegated to
// go-headless-term; this package owns the pieces the sync protocol
// needs on top of it: scrollback accounting, viewport position,
// fit-to-container sizing, and disposal.
package emulator

import (
	"strings"
	"sync"
	"sync/atomic"

	headlessterm "github.com/danielgatis/go-headless-term"

	"github.com/agentpane/agentpane/internal/config"
)

var instanceCounter atomic.Uint64

// Host owns a terminal emulator for the lifetime of one session view.
// Dimension and scrollback settings are fixed at creation; changing
// them means disposing and recreating the Host. Shrinking scrollback
// on a live instance could silently discard visible history.
type Host struct {
	mu sync.Mutex

	id         uint64
	term       *headlessterm.Terminal
	cols, rows int

	containerCols int
	containerRows int

	scrollback   int
	history      []string
	scrollOffset int // lines above the bottom; 0 means pinned to live output

	subs     map[int]func(viewportY int)
	nextSub  int
	disposed bool
}

// New creates a Host with the given screen size. The scrollback line
// count is clamped to the supported range no matter what the caller
// asks for.
func New(cols, rows, scrollbackLines int) *Host {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	clamped := config.ClampScrollback(scrollbackLines)
	term := headlessterm.New(headlessterm.WithSize(rows, cols))
	term.SetMaxScrollback(clamped)
	return &Host{
		id:            instanceCounter.Add(1),
		term:          term,
		cols:          cols,
		rows:          rows,
		containerCols: cols,
		containerRows: rows,
		scrollback:    clamped,
		subs:          make(map[int]func(int)),
	}
}

// InstanceID identifies this emulator instance. The seed completion
// dedup guard keys on it, not on the session ID: a reconnect replays
// snapshots for the same session, but only a fresh Host may be seeded
// again.
func (h *Host) InstanceID() uint64 { return h.id }

// Write feeds raw terminal data to the emulator.
func (h *Host) Write(data string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return
	}
	h.term.WriteString(data)
}

// Reset performs a full terminal reset and drops scrollback, local
// history, and scroll position.
func (h *Host) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return
	}
	h.term.WriteString("\x1bc")
	h.term.ClearScrollback()
	h.history = nil
	h.scrollOffset = 0
}

// Clear erases the visible screen and homes the cursor.
func (h *Host) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return
	}
	h.term.WriteString("\x1b[2J\x1b[H")
}

// Resize changes the emulator screen dimensions.
func (h *Host) Resize(cols, rows int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed || cols <= 0 || rows <= 0 {
		return
	}
	h.cols, h.rows = cols, rows
	h.term.Resize(rows, cols)
}

// SetContainerSize records the size of the view hosting this terminal.
func (h *Host) SetContainerSize(cols, rows int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cols > 0 {
		h.containerCols = cols
	}
	if rows > 0 {
		h.containerRows = rows
	}
}

// FitToContainer resizes the emulator to the hosting view's size and
// returns the applied dimensions. The snapshot's declared size and the
// actual container may disagree; the container wins.
func (h *Host) FitToContainer() (cols, rows int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return h.cols, h.rows
	}
	if h.containerCols != h.cols || h.containerRows != h.rows {
		h.cols, h.rows = h.containerCols, h.containerRows
		h.term.Resize(h.rows, h.cols)
	}
	return h.cols, h.rows
}

// Cols returns the current column count.
func (h *Host) Cols() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cols
}

// Rows returns the current row count.
func (h *Host) Rows() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rows
}

// BaseY is the viewport position when pinned to the bottom: the number
// of history lines above the visible screen.
func (h *Host) BaseY() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.history)
}

// ViewportY is the current top of the viewport within the buffer. It
// equals BaseY when the user is at the bottom.
func (h *Host) ViewportY() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewportYLocked()
}

func (h *Host) viewportYLocked() int {
	y := len(h.history) - h.scrollOffset
	if y < 0 {
		y = 0
	}
	return y
}

// Length is the total buffer length: history plus the visible screen.
func (h *Host) Length() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.history) + h.rows
}

// OffsetFromBottom reports how far the user has scrolled up.
func (h *Host) OffsetFromBottom() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrollOffset
}

// SetScrollOffset moves the viewport to linesFromBottom above the live
// screen, clamped to the available history, and notifies scroll
// subscribers.
func (h *Host) SetScrollOffset(linesFromBottom int) {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return
	}
	if linesFromBottom < 0 {
		linesFromBottom = 0
	}
	if linesFromBottom > len(h.history) {
		linesFromBottom = len(h.history)
	}
	changed := linesFromBottom != h.scrollOffset
	h.scrollOffset = linesFromBottom
	viewportY := h.viewportYLocked()
	subs := make([]func(int), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	if changed {
		for _, fn := range subs {
			fn(viewportY)
		}
	}
}

// ScrollToBottom returns the viewport to the live screen.
func (h *Host) ScrollToBottom() { h.SetScrollOffset(0) }

// OnScroll registers a viewport-position callback and returns an
// unsubscribe function. The emulation library's scroll event is not
// reliably emitted for every input source, so consumers should pair
// this with a position poll.
func (h *Host) OnScroll(fn func(viewportY int)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	id := h.nextSub
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// ReplaceHistory swaps the scrollback store for freshly reloaded
// content, keeping at most the configured scrollback line count
// (newest lines win).
func (h *Host) ReplaceHistory(content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return
	}
	lines := splitLines(content)
	if len(lines) > h.scrollback {
		lines = lines[len(lines)-h.scrollback:]
	}
	h.history = lines
	if h.scrollOffset > len(h.history) {
		h.scrollOffset = len(h.history)
	}
}

// HistoryLine returns one stored history line, oldest first. Empty
// string if out of range.
func (h *Host) HistoryLine(i int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i < 0 || i >= len(h.history) {
		return ""
	}
	return h.history[i]
}

// Dispose releases the emulator and all subscriptions. The caller must
// discard any sync state for the session at the same time.
func (h *Host) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disposed = true
	h.subs = map[int]func(int){}
	h.history = nil
	h.term = nil
}

// Disposed reports whether the Host has been released.
func (h *Host) Disposed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.TrimRight(normalized, "\n")
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, "\n")
}
