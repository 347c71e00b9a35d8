// Package host is the remote side of the stream protocol: it owns the
// pseudo-terminal attached to a tmux session, produces chunked seed
// snapshots for newly attached clients, streams live output with
// sequence numbers, and answers full-history reload requests.
package host

import (
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// PTY wraps a pseudo-terminal running one command.
type PTY struct {
	cmd  *exec.Cmd
	file *os.File
	mu   sync.Mutex
}

// SpawnPTY starts name with args under a fresh pty sized cols×rows.
// The size must be set before the command starts: tmux queries the
// terminal size on startup and renders nothing into a 0×0 pty.
func SpawnPTY(cols, rows int, name string, args ...string) (*PTY, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)

	winSize := &pty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	}
	ptmx, err := pty.StartWithSize(cmd, winSize)
	if err != nil {
		return nil, err
	}

	return &PTY{cmd: cmd, file: ptmx}, nil
}

// Read reads from the pty.
func (p *PTY) Read(buf []byte) (int, error) {
	return p.file.Read(buf)
}

// Write writes to the pty.
func (p *PTY) Write(data []byte) (int, error) {
	return p.file.Write(data)
}

// Resize changes the pty window size.
func (p *PTY) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pty.Setsize(p.file, &pty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	})
}

// Close kills the command and releases the pty.
func (p *PTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	return p.file.Close()
}
