package host

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"

	"github.com/agentpane/agentpane/internal/transport"
)

// Publisher delivers envelopes to the attached client.
type Publisher interface {
	Publish(transport.Envelope) error
}

// seamFilterLimit is how much initial pty output gets the destructive
// sequences stripped. tmux redraws its viewport right after attach;
// past this window the stream flows untouched.
const seamFilterLimit = 4096

// readBufSize matches a pty's typical maximum read.
const readBufSize = 32 * 1024

// Streamer drives one client attachment to one session: it produces
// the chunked seed snapshot, then streams live pty output with
// sequence numbers, and answers input, resize, and history-reload
// messages.
type Streamer struct {
	session *Session
	tmux    *Tmux
	pub     Publisher
	log     pslog.Logger

	seq atomic.Int64

	mu     sync.Mutex
	pty    *PTY
	closed bool
}

// NewStreamer creates a streamer for the session.
func NewStreamer(ctx context.Context, sess *Session, pub Publisher) *Streamer {
	return &Streamer{
		session: sess,
		tmux:    NewTmux(sess.TmuxSession),
		pub:     pub,
		log:     pslog.Ctx(ctx).With("session", sess.ID, "tmux", sess.TmuxSession),
	}
}

// Attach resizes the tmux window to the client's dimensions, sends the
// seed snapshot, and starts live streaming through a fresh pty.
func (s *Streamer) Attach(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("streamer closed")
	}
	if s.pty != nil {
		return nil // already attached
	}

	if cols > 0 && rows > 0 {
		if err := s.tmux.ResizeWindow(cols, rows); err != nil {
			s.log.Warn("resize before seed failed", "err", err)
		}
		// Let tmux reflow before capturing the snapshot.
		time.Sleep(50 * time.Millisecond)
	}

	if err := s.sendSeed(); err != nil {
		s.log.Warn("seed snapshot failed", "err", err)
		// The client can still sync from the live stream.
	}

	p, err := SpawnPTY(cols, rows, s.tmux.Bin, "attach-session", "-t", s.session.TmuxSession)
	if err != nil {
		return fmt.Errorf("attach to tmux: %w", err)
	}
	s.pty = p
	go s.readLoop(p)
	return nil
}

// sendSeed captures the full pane, sanitizes it, and emits it as a
// chunked batch. The final chunk carries the pane geometry, cursor
// position, and whether scrollback exists beyond the snapshot.
func (s *Streamer) sendSeed() error {
	raw, err := s.tmux.CaptureAll()
	if err != nil {
		return err
	}
	content := NormalizeCRLF(SanitizeHistory(raw))

	info, err := s.tmux.Info()
	if err != nil {
		return err
	}

	chunks := SplitSeedChunks(content, MaxSeedChunkBytes)
	total := len(chunks)
	for i, chunk := range chunks {
		env := transport.Envelope{
			Type:        transport.TypeSeedChunk,
			SessionID:   s.session.ID,
			Chunk:       i,
			TotalChunks: total,
			Data:        chunk,
		}
		if i == total-1 {
			cols, rows := info.Cols, info.Rows
			cx, cy := info.CursorX, info.CursorY
			hasHistory := info.HistorySize > 0
			env.Cols, env.Rows = &cols, &rows
			env.CursorX, env.CursorY = &cx, &cy
			env.HasHistory = &hasHistory
		}
		if err := s.pub.Publish(env); err != nil {
			return fmt.Errorf("publish seed chunk %d/%d: %w", i, total, err)
		}
	}
	s.log.Info("seed snapshot sent", "chunks", total, "bytes", len(content))
	return nil
}

// readLoop streams pty output as sequence-numbered data frames. The
// first bytes after attach pass the seam filter; a multi-byte
// character split across reads is carried into the next frame.
func (s *Streamer) readLoop(p *PTY) {
	buf := make([]byte, readBufSize)
	var carry []byte
	filtered := 0

	for {
		n, err := p.Read(buf)
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.pub.Publish(transport.Envelope{
					Type:      transport.TypeExit,
					SessionID: s.session.ID,
					Data:      err.Error(),
				})
			}
			return
		}
		if n == 0 {
			continue
		}

		data := append(carry, buf[:n]...)
		boundary := LastUTF8Boundary(data)
		carry = append([]byte(nil), data[boundary:]...)
		out := string(data[:boundary])
		if out == "" {
			continue
		}

		if filtered < seamFilterLimit {
			out = StripSeamSequences(out)
			filtered += n
		}
		if out == "" {
			continue
		}
		s.pub.Publish(transport.Envelope{
			Type:      transport.TypeData,
			SessionID: s.session.ID,
			Seq:       s.seq.Add(1),
			Data:      out,
		})
	}
}

// HandleInput writes client keystrokes to the pty.
func (s *Streamer) HandleInput(data string) {
	s.mu.Lock()
	p := s.pty
	s.mu.Unlock()
	if p == nil {
		return
	}
	if _, err := p.Write([]byte(data)); err != nil {
		s.log.Warn("pty write failed", "err", err)
	}
}

// HandleResize applies new dimensions to the pty and the tmux window.
func (s *Streamer) HandleResize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	s.mu.Lock()
	p := s.pty
	s.mu.Unlock()
	if p != nil {
		if err := p.Resize(cols, rows); err != nil {
			s.log.Warn("pty resize failed", "err", err)
		}
	}
	if err := s.tmux.ResizeWindow(cols, rows); err != nil {
		s.log.Warn("tmux resize failed", "err", err)
	}
}

// HandleHistoryRequest answers a full-history reload with a single
// sequence-numbered frame. The frame's sequence is the last live
// sequence emitted before capture, so the client can drop any buffered
// live frame the reload already contains by comparing numbers.
func (s *Streamer) HandleHistoryRequest(maxLines int) {
	raw, err := s.tmux.CaptureAll()
	if err != nil {
		s.log.Warn("history capture failed", "err", err)
		return
	}
	content := NormalizeCRLF(SanitizeHistory(raw))
	content = tailLines(content, maxLines)
	s.pub.Publish(transport.Envelope{
		Type:      transport.TypeHistoryFrame,
		SessionID: s.session.ID,
		Seq:       s.seq.Load(),
		Data:      content,
	})
}

// Close stops streaming and releases the pty.
func (s *Streamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.pty != nil {
		err := s.pty.Close()
		s.pty = nil
		return err
	}
	return nil
}

// tailLines keeps at most maxLines of CRLF-separated content, newest
// last.
func tailLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return content
	}
	lines := strings.Split(content, "\r\n")
	if len(lines) <= maxLines {
		return content
	}
	return strings.Join(lines[len(lines)-maxLines:], "\r\n")
}
