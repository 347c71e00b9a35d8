package termsync

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"

	"github.com/agentpane/agentpane/internal/clock"
)

// Controller owns all stream-sync state for one session: snapshot
// assembly, the pending write buffer, the post-sync ignore window, and
// the history reload state machine. Nothing outside the controller may
// mutate that state.
//
// Handlers, timer callbacks, and the scroll poll all serialize on one
// mutex, so ordering between them is the only concurrency concern.
// The controller calls the Emulator and Outbound collaborators while
// holding that mutex; neither may call back into the controller
// synchronously.
type Controller struct {
	sessionID string
	emu       Emulator
	out       Outbound
	clk       clock.Clock
	log       pslog.Logger
	cfg       Config
	cb        Callbacks

	mu          sync.Mutex
	seed        *seedState
	seedGen     int
	seedTimer   clock.Timer
	pending     pendingBuffer
	ignoreUntil time.Time
	hist        historyState

	seeded         bool
	seededInstance uint64

	unsubScroll func()
	pollStop    chan struct{}
	closed      bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock injects a clock; tests use a fake.
func WithClock(c clock.Clock) Option { return func(ctrl *Controller) { ctrl.clk = c } }

// WithLogger injects a logger.
func WithLogger(l pslog.Logger) Option { return func(ctrl *Controller) { ctrl.log = l } }

// WithConfig overrides protocol tuning.
func WithConfig(cfg Config) Option { return func(ctrl *Controller) { ctrl.cfg = cfg } }

// WithCallbacks registers host-view notifications.
func WithCallbacks(cb Callbacks) Option { return func(ctrl *Controller) { ctrl.cb = cb } }

// New creates a controller for one session. Call Start to begin scroll
// observation and Close when the hosting view unmounts.
func New(sessionID string, emu Emulator, out Outbound, opts ...Option) *Controller {
	c := &Controller{
		sessionID: sessionID,
		emu:       emu,
		out:       out,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clk == nil {
		c.clk = clock.Real()
	}
	if c.log == nil {
		c.log = pslog.Ctx(context.Background())
	}
	c.cfg = c.cfg.withDefaults()
	return c
}

// Start subscribes to emulator scroll events and starts the scroll
// position poll. The emulation library's scroll event is not reliably
// emitted for every input source; the poll is the backstop.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.closed || c.pollStop != nil {
		c.mu.Unlock()
		return
	}
	c.pollStop = make(chan struct{})
	stop := c.pollStop
	c.unsubScroll = c.emu.OnScroll(func(viewportY int) {
		c.observeViewport(viewportY)
	})
	ticker := c.clk.NewTicker(c.cfg.PollInterval)
	c.mu.Unlock()

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				c.Poll()
			}
		}
	}()
}

// Close stops timers, the poll, and the scroll subscription. Any live
// seed or buffered data is discarded; the caller disposes the emulator
// alongside.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.seedTimer != nil {
		c.seedTimer.Stop()
		c.seedTimer = nil
	}
	c.seed = nil
	c.pending.clear()
	c.hist.frames = nil
	stop := c.pollStop
	unsub := c.unsubScroll
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if unsub != nil {
		unsub()
	}
}

// OnSeedChunk handles one chunk of a full-screen snapshot.
//
// A chunk with index 0, a differing declared total, or no assembly in
// progress starts a fresh SeedState and discards the old one outright:
// interleaved batches are never merged. The emulator is cleared
// immediately on batch start so the user sees a clean slate instead of
// two overlapping frames.
func (c *Controller) OnSeedChunk(index, totalChunks int, data string, meta *SeedMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if totalChunks < 1 {
		c.log.Warn("ignoring seed chunk with invalid batch size",
			"session", c.sessionID, "totalChunks", totalChunks)
		return
	}

	if c.seed == nil || index == 0 || c.seed.total != totalChunks {
		c.startSeedLocked(totalChunks)
	}

	idx := c.seed.store(index, data)
	if idx == c.seed.total-1 && meta != nil {
		c.seed.meta = *meta
		c.seed.hasMeta = true
	}
	if c.seed.complete() {
		c.completeSeedLocked()
	}
}

// OnData handles a live output frame.
//
// Routing, in order: the ignore window drops it, an active seed
// assembly buffers it, an in-flight history reload buffers it with its
// sequence number, otherwise it renders immediately.
func (c *Controller) OnData(seq int64, data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if !c.ignoreUntil.IsZero() {
		if c.clk.Now().Before(c.ignoreUntil) {
			return
		}
		c.ignoreUntil = time.Time{}
	}

	if c.seed != nil {
		if overBudget := c.pending.push(data); overBudget {
			c.abortSeedLocked()
		}
		return
	}

	if c.hist.inFlight {
		c.hist.bufferFrame(seq, data)
		return
	}

	c.emu.Write(data)
}

// OnHistoryFrame applies a full-history reload response. Frames that
// raced with the reload are merged in sequence order; anything at or
// below the response's sequence number is already inside the reload
// and is dropped by that comparison alone.
func (c *Controller) OnHistoryFrame(seq int64, data string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !c.hist.inFlight {
		c.mu.Unlock()
		c.log.Warn("dropping unsolicited history frame", "session", c.sessionID, "seq", seq)
		return
	}

	c.hist.inFlight = false
	saved := c.hist.savedOffset
	c.emu.ReplaceHistory(data)
	for _, f := range c.hist.framesAfter(seq) {
		c.emu.Write(f.data)
	}
	c.ignoreUntil = c.clk.Now().Add(postSyncIgnore)
	c.mu.Unlock()

	// Outside the lock: restoring the scroll position fires the
	// emulator's scroll callbacks, which re-enter observeViewport.
	c.emu.SetScrollOffset(saved)
}

// Poll samples the viewport position once. Suppressed while a reload
// is in flight; there is nothing useful to decide until it lands.
func (c *Controller) Poll() {
	c.mu.Lock()
	if c.closed || c.hist.inFlight {
		c.mu.Unlock()
		return
	}
	viewportY := c.emu.ViewportY()
	c.mu.Unlock()
	c.observeViewport(viewportY)
}

// HistoryAvailable reports whether scrollback can be fetched on
// demand.
func (c *Controller) HistoryAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hist.available
}

func (c *Controller) observeViewport(viewportY int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if viewportY >= c.emu.BaseY() {
		c.hist.atBottom()
		return
	}

	now := c.clk.Now()
	if !c.hist.canRequest(now, c.cfg.HistoryCooldown) {
		return
	}

	offset := c.emu.OffsetFromBottom()
	c.hist.requested = true
	c.hist.inFlight = true
	c.hist.lastRequestAt = now
	c.hist.savedOffset = offset
	c.hist.frames = nil
	if c.cb.OnHistoryOffset != nil {
		c.cb.OnHistoryOffset(offset)
	}
	if err := c.out.RequestFullHistory(c.sessionID, c.cfg.ScrollbackLines); err != nil {
		c.log.Warn("history reload request failed", "session", c.sessionID, "err", err)
	}
}

// startSeedLocked replaces any in-progress assembly with a fresh one.
func (c *Controller) startSeedLocked(totalChunks int) {
	if c.seedTimer != nil {
		c.seedTimer.Stop()
		c.seedTimer = nil
	}
	c.seed = newSeedState(totalChunks)
	c.seedGen++
	c.pending.clear()
	c.emu.Clear()

	gen := c.seedGen
	c.seedTimer = c.clk.AfterFunc(c.cfg.SeedTimeout, func() {
		c.seedTimedOut(gen)
	})
}

// completeSeedLocked runs the post-assembly procedure.
//
// The snapshot text itself is not written (unless configured): it only
// teaches us the remote dimensions and that history exists. Rendering
// happens via the resize jiggle, which forces the remote program to
// repaint from its own state, so the screen can never hold a stale
// snapshot overlaid with a live redraw.
func (c *Controller) completeSeedLocked() {
	if c.seedTimer != nil {
		c.seedTimer.Stop()
		c.seedTimer = nil
	}
	content := c.seed.assemble()
	meta := c.seed.meta
	c.seed = nil
	c.pending.clear()

	if c.seeded && c.seededInstance == c.emu.InstanceID() {
		// Stale snapshot replayed after a reconnect race; this
		// emulator already holds live state.
		return
	}
	c.seeded = true
	c.seededInstance = c.emu.InstanceID()

	if meta.Cols > 0 && meta.Rows > 0 {
		c.emu.Resize(meta.Cols, meta.Rows)
	}
	c.emu.Reset()
	c.emu.Clear()
	if c.cfg.WriteSeedContent {
		c.emu.Write(content)
	}

	cols, rows := c.emu.FitToContainer()
	if err := c.out.SendResize(c.sessionID, cols, rows-1); err != nil {
		c.log.Warn("resize jiggle failed", "session", c.sessionID, "err", err)
	}
	c.clk.AfterFunc(jiggleDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		if err := c.out.SendResize(c.sessionID, cols, rows); err != nil {
			c.log.Warn("resize jiggle failed", "session", c.sessionID, "err", err)
		}
	})

	c.ignoreUntil = c.clk.Now().Add(postSyncIgnore)
	// History is always fetchable on demand once we skip writing the
	// snapshot, whatever the snapshot's own hint said.
	c.hist.available = true

	c.clk.AfterFunc(settleDelay, func() {
		c.mu.Lock()
		closed := c.closed
		cb := c.cb.OnSeedReady
		c.mu.Unlock()
		if !closed && cb != nil {
			cb()
		}
	})
}

// seedTimedOut is the 30-second timer path. With at least 80% of the
// batch received the partial concatenation renders as a best effort;
// below that nothing renders. Either way the buffered live output
// flushes and the caller learns about the timeout.
func (c *Controller) seedTimedOut(gen int) {
	c.mu.Lock()
	if c.closed || c.seed == nil || c.seedGen != gen {
		c.mu.Unlock()
		return
	}
	received := len(c.seed.received)
	total := c.seed.total
	if c.seed.meetsPartialThreshold() {
		c.emu.Write(c.seed.assemble())
	}
	c.seed = nil
	c.seedTimer = nil
	for _, data := range c.pending.drain() {
		c.emu.Write(data)
	}
	cb := c.cb.OnSeedTimeout
	c.mu.Unlock()

	c.log.Warn("seed assembly timed out",
		"session", c.sessionID, "received", received, "total", total)
	if cb != nil {
		cb(received, total)
	}
}

// abortSeedLocked handles pending-buffer byte overflow: a runaway
// producer becomes a bounded fallback to the raw stream instead of an
// unbounded-memory hazard.
func (c *Controller) abortSeedLocked() {
	if c.seedTimer != nil {
		c.seedTimer.Stop()
		c.seedTimer = nil
	}
	c.seed = nil
	bytes := c.pending.byteSize()
	for _, data := range c.pending.drain() {
		c.emu.Write(data)
	}
	c.log.Warn("pending buffer overflow aborted seed",
		"session", c.sessionID, "bytes", bytes)
	if c.cb.OnOverflow != nil {
		c.cb.OnOverflow(bytes)
	}
}
