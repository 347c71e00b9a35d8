package transport

// SessionChannel is the outbound half of one session's stream: typed
// send helpers over the shared client. Sends while disconnected are
// silent no-ops; the sync layer treats a down link as "degrade, don't
// fail".
type SessionChannel struct {
	client    *Client
	sessionID string
}

// NewSessionChannel binds a client connection to one session ID.
func NewSessionChannel(c *Client, sessionID string) *SessionChannel {
	return &SessionChannel{client: c, sessionID: sessionID}
}

// Connected reports whether the underlying socket is usable.
func (s *SessionChannel) Connected() bool { return s.client.Connected() }

// SendResize notifies the remote process of new terminal dimensions.
func (s *SessionChannel) SendResize(sessionID string, cols, rows int) error {
	if !s.client.Connected() {
		return nil
	}
	return s.client.Publish(Envelope{
		Type:      TypeResize,
		SessionID: sessionID,
		Cols:      &cols,
		Rows:      &rows,
	})
}

// RequestFullHistory asks the host for the session's scrollback,
// bounded by maxLines.
func (s *SessionChannel) RequestFullHistory(sessionID string, maxLines int) error {
	if !s.client.Connected() {
		return nil
	}
	return s.client.Publish(Envelope{
		Type:      TypeRequestFullHistory,
		SessionID: sessionID,
		MaxLines:  maxLines,
	})
}

// SendInput forwards keystrokes to the remote pty.
func (s *SessionChannel) SendInput(data string) error {
	if !s.client.Connected() {
		return nil
	}
	return s.client.Publish(Envelope{
		Type:      TypeInput,
		SessionID: s.sessionID,
		Data:      data,
	})
}
