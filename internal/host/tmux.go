package host

import (
	"fmt"
	"strconv"
	"strings"
)

// Tmux runs tmux commands against one session. The binary path is
// configurable for tests and non-standard installs.
type Tmux struct {
	Bin     string
	Session string

	// run executes the command and returns stdout; overridable in
	// tests so no tmux server is needed.
	run func(args ...string) ([]byte, error)
}

// NewTmux creates a runner for the named session.
func NewTmux(session string) *Tmux {
	t := &Tmux{Bin: "tmux", Session: session}
	t.run = t.exec
	return t
}

// HasSession reports whether the session exists.
func (t *Tmux) HasSession() bool {
	_, err := t.run("has-session", "-t", t.Session)
	return err == nil
}

// ResizeWindow resizes the tmux window so the remote program reflows
// to the client's dimensions.
func (t *Tmux) ResizeWindow(cols, rows int) error {
	_, err := t.run("resize-window", "-t", t.Session,
		"-x", strconv.Itoa(cols), "-y", strconv.Itoa(rows))
	if err != nil {
		return fmt.Errorf("tmux resize-window: %w", err)
	}
	return nil
}

// CapturePane returns the pane content including escape sequences.
// startLine/endLine use tmux offsets: negative values reach into
// scrollback, "-" means the beginning or end of history.
func (t *Tmux) CapturePane(startLine, endLine string) (string, error) {
	out, err := t.run("capture-pane", "-t", t.Session, "-p", "-e",
		"-S", startLine, "-E", endLine)
	if err != nil {
		return "", fmt.Errorf("tmux capture-pane: %w", err)
	}
	return string(out), nil
}

// CaptureAll returns the full pane: scrollback plus visible screen.
func (t *Tmux) CaptureAll() (string, error) {
	return t.CapturePane("-", "-")
}

// PaneInfo is a point-in-time snapshot of the pane's geometry and
// cursor, queried via display-message.
type PaneInfo struct {
	Cols        int
	Rows        int
	CursorX     int
	CursorY     int
	HistorySize int
	InAltScreen bool
}

// Info queries the pane state.
func (t *Tmux) Info() (PaneInfo, error) {
	out, err := t.run("display-message", "-t", t.Session, "-p",
		"#{pane_width},#{pane_height},#{cursor_x},#{cursor_y},#{history_size},#{alternate_on}")
	if err != nil {
		return PaneInfo{}, fmt.Errorf("tmux display-message: %w", err)
	}
	parts := strings.Split(strings.TrimSpace(string(out)), ",")
	if len(parts) < 6 {
		return PaneInfo{}, fmt.Errorf("unexpected tmux output: got %d fields, expected 6", len(parts))
	}
	var info PaneInfo
	info.Cols, _ = strconv.Atoi(parts[0])
	info.Rows, _ = strconv.Atoi(parts[1])
	info.CursorX, _ = strconv.Atoi(parts[2])
	info.CursorY, _ = strconv.Atoi(parts[3])
	info.HistorySize, _ = strconv.Atoi(parts[4])
	info.InAltScreen = parts[5] == "1"
	return info, nil
}

// DisableStatusBar turns the session's status line off; the client
// renders its own chrome.
func (t *Tmux) DisableStatusBar() error {
	if _, err := t.run("set-option", "-t", t.Session, "status", "off"); err != nil {
		return fmt.Errorf("failed to set tmux status off: %w", err)
	}
	return nil
}

func (t *Tmux) exec(args ...string) ([]byte, error) {
	return execCommandOutput(t.Bin, args...)
}
