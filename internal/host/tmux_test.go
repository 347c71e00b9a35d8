package host

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRun records tmux invocations and plays back canned output.
func fakeRun(t *Tmux, out string, err error) *[][]string {
	var calls [][]string
	t.run = func(args ...string) ([]byte, error) {
		calls = append(calls, args)
		return []byte(out), err
	}
	return &calls
}

// TestTmuxInfoParsesDisplayMessage verifies the pane snapshot fields
// parse from the display-message format string.
func TestTmuxInfoParsesDisplayMessage(t *testing.T) {
	tm := NewTmux("demo")
	fakeRun(tm, "120,40,15,39,2345,0\n", nil)

	info, err := tm.Info()
	require.NoError(t, err)
	assert.Equal(t, PaneInfo{
		Cols: 120, Rows: 40, CursorX: 15, CursorY: 39,
		HistorySize: 2345, InAltScreen: false,
	}, info)
}

// TestTmuxInfoAltScreenFlag verifies alternate_on=1 maps to the flag.
func TestTmuxInfoAltScreenFlag(t *testing.T) {
	tm := NewTmux("demo")
	fakeRun(tm, "80,24,0,0,0,1\n", nil)

	info, err := tm.Info()
	require.NoError(t, err)
	assert.True(t, info.InAltScreen)
	assert.Zero(t, info.HistorySize)
}

// TestTmuxInfoMalformedOutput verifies short output is an error, not a
// zeroed struct silently accepted.
func TestTmuxInfoMalformedOutput(t *testing.T) {
	tm := NewTmux("demo")
	fakeRun(tm, "80,24\n", nil)

	_, err := tm.Info()
	assert.Error(t, err)
}

// TestTmuxCaptureAllArguments verifies the capture reaches from the
// start of history to the end of the screen with escapes preserved.
func TestTmuxCaptureAllArguments(t *testing.T) {
	tm := NewTmux("demo")
	calls := fakeRun(tm, "content", nil)

	out, err := tm.CaptureAll()
	require.NoError(t, err)
	assert.Equal(t, "content", out)

	require.Len(t, *calls, 1)
	args := strings.Join((*calls)[0], " ")
	assert.Equal(t, "capture-pane -t demo -p -e -S - -E -", args)
}

// TestTmuxResizeWindowArguments verifies the resize targets the session
// with both dimensions.
func TestTmuxResizeWindowArguments(t *testing.T) {
	tm := NewTmux("demo")
	calls := fakeRun(tm, "", nil)

	require.NoError(t, tm.ResizeWindow(120, 40))
	args := strings.Join((*calls)[0], " ")
	assert.Equal(t, "resize-window -t demo -x 120 -y 40", args)
}

// TestTmuxHasSession verifies the exit status maps to a boolean.
func TestTmuxHasSession(t *testing.T) {
	tm := NewTmux("demo")
	fakeRun(tm, "", nil)
	assert.True(t, tm.HasSession())

	fakeRun(tm, "", errors.New("exit status 1"))
	assert.False(t, tm.HasSession())
}

// TestTmuxCommandErrorWrapped verifies failures carry context.
func TestTmuxCommandErrorWrapped(t *testing.T) {
	tm := NewTmux("demo")
	fakeRun(tm, "", errors.New("no server running"))

	_, err := tm.CaptureAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture-pane")
}
