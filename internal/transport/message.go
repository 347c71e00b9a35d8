// Package transport carries terminal stream messages between the
// session host and attached clients over a websocket. The socket is
// reliable and in-order per stream, but application-level message
// assembly is not atomic: a full-screen snapshot arrives as a series of
// seed chunks that the client must reassemble.
package transport

// Message types exchanged on the session channel.
const (
	TypeSeedChunk          = "terminal:seed_chunk"
	TypeData               = "terminal:data"
	TypeResize             = "terminal:resize"
	TypeRequestFullHistory = "terminal:request_full_history"
	TypeHistoryFrame       = "terminal:history_frame"
	TypeInput              = "terminal:input"
	TypeExit               = "terminal:exit"
)

// Envelope is the wire format for every message on a session channel.
// Optional seed metadata uses pointers so that absence survives the
// round trip; the final chunk of a snapshot is the only message that
// carries it.
type Envelope struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`

	// Seq is a monotonically increasing frame number stamped by the
	// producer on data and history frames. History reload dedup
	// compares sequence numbers, never content.
	Seq int64 `json:"seq,omitempty"`

	// Data is the payload for seed chunks, live data, history frames
	// and input.
	Data string `json:"data,omitempty"`

	// Chunk and TotalChunks describe a seed chunk's place in its
	// snapshot batch.
	Chunk       int `json:"chunk,omitempty"`
	TotalChunks int `json:"totalChunks,omitempty"`

	// Snapshot metadata, present on the final seed chunk only.
	Cols       *int  `json:"cols,omitempty"`
	Rows       *int  `json:"rows,omitempty"`
	CursorX    *int  `json:"cursorX,omitempty"`
	CursorY    *int  `json:"cursorY,omitempty"`
	HasHistory *bool `json:"hasHistory,omitempty"`

	// MaxLines bounds a full-history request.
	MaxLines int `json:"maxLines,omitempty"`
}
