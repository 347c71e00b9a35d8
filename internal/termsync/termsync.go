// Package termsync reconstructs a remote pseudo-terminal's screen and
// scrollback inside a local emulator, over a channel whose messages are
// reliable and ordered per stream but not assembled atomically: the
// initial snapshot arrives chunked, live output races with snapshot
// assembly and history reloads, and the remote program may redraw its
// whole screen at any moment.
//
// One Controller owns all sync state for one session. It guarantees
// eventual visual consistency with the remote screen, not a
// byte-accurate replay: data inside the post-sync ignore window is
// dropped on purpose because the forced redraw or history reload is
// about to re-deliver it.
package termsync

import (
	"time"
)

// Emulator is the terminal view the controller renders into. The
// controller only touches this public surface; the instance is owned
// by the hosting view and disposed with it.
type Emulator interface {
	InstanceID() uint64
	Write(data string)
	Reset()
	Clear()
	Resize(cols, rows int)
	FitToContainer() (cols, rows int)
	ViewportY() int
	BaseY() int
	OffsetFromBottom() int
	SetScrollOffset(linesFromBottom int)
	OnScroll(fn func(viewportY int)) (unsubscribe func())
	ReplaceHistory(content string)
}

// Outbound sends protocol messages to the remote session host.
// Implementations no-op rather than error when disconnected.
type Outbound interface {
	Connected() bool
	SendResize(sessionID string, cols, rows int) error
	RequestFullHistory(sessionID string, maxLines int) error
}

// Callbacks notify the hosting view. All are optional and all failure
// modes surface only here; the controller never fails the session.
// Callbacks may run from controller internals and must not call back
// into the Controller.
type Callbacks struct {
	// OnSeedReady fires once the snapshot handshake has settled and
	// interaction is safe.
	OnSeedReady func()
	// OnSeedTimeout reports an incomplete snapshot assembly.
	OnSeedTimeout func(received, total int)
	// OnOverflow reports a pending-buffer byte overflow that aborted
	// snapshot assembly.
	OnOverflow func(bufferedBytes int)
	// OnHistoryOffset reports the scroll offset captured when a
	// history reload was requested, for position restoration.
	OnHistoryOffset func(offsetFromBottom int)
}

// Config tunes the protocol. Zero values take the defaults below.
type Config struct {
	SeedTimeout     time.Duration
	HistoryCooldown time.Duration
	PollInterval    time.Duration
	ScrollbackLines int
	// WriteSeedContent renders the assembled snapshot text instead of
	// discarding it. Default off: writing it risks duplicating the
	// remote program's own redraw. Turn on only for remote programs
	// that do not repaint on resize.
	WriteSeedContent bool
}

const (
	defaultSeedTimeout     = 30 * time.Second
	defaultHistoryCooldown = 2 * time.Second
	defaultPollInterval    = 100 * time.Millisecond
	defaultScrollbackLines = 10000

	// jiggleDelay separates the two resize notifications that force a
	// full-screen program to repaint from its own state.
	jiggleDelay = 50 * time.Millisecond
	// settleDelay is how long after the jiggle the redraw is given to
	// land before seed-ready is signalled.
	settleDelay = 400 * time.Millisecond
	// postSyncIgnore is the window after seed completion or history
	// reload during which live data is dropped as duplicate content.
	postSyncIgnore = 500 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.SeedTimeout <= 0 {
		c.SeedTimeout = defaultSeedTimeout
	}
	if c.HistoryCooldown <= 0 {
		c.HistoryCooldown = defaultHistoryCooldown
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.ScrollbackLines <= 0 {
		c.ScrollbackLines = defaultScrollbackLines
	}
	return c
}
