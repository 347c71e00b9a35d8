package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"pkt.systems/pslog"
)

// Client is a publish/subscribe view over one websocket connection.
// Handlers are dispatched by message type from a single read loop, so
// for any one client all handlers run sequentially; the sync controller
// relies on that ordering.
type Client struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	connected atomic.Bool

	subMu  sync.Mutex
	subs   map[string]map[int]func(Envelope)
	nextID int

	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects to a session host websocket endpoint and starts the
// read loop.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := NewClient(conn)
	go c.readLoop(ctx)
	return c, nil
}

// NewClient wraps an established connection without starting the read
// loop. The server side and tests drive the loop themselves.
func NewClient(conn *websocket.Conn) *Client {
	c := &Client{
		conn: conn,
		subs: make(map[string]map[int]func(Envelope)),
		done: make(chan struct{}),
	}
	c.connected.Store(true)
	return c
}

// Connected reports whether the underlying socket is still usable.
// Outbound publishes while disconnected are dropped, not errors: the
// sync layer degrades to "show what we have" when the link is down.
func (c *Client) Connected() bool { return c.connected.Load() }

// Subscribe registers a handler for a message type and returns an
// unsubscribe function.
func (c *Client) Subscribe(msgType string, fn func(Envelope)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextID++
	id := c.nextID
	if c.subs[msgType] == nil {
		c.subs[msgType] = make(map[int]func(Envelope))
	}
	c.subs[msgType][id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs[msgType], id)
	}
}

// Publish sends one envelope. A publish on a disconnected client is a
// silent no-op.
func (c *Client) Publish(env Envelope) error {
	if !c.connected.Load() {
		return nil
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Type, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.connected.Store(false)
		return fmt.Errorf("write %s: %w", env.Type, err)
	}
	return nil
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} { return c.done }

// ReadLoop dispatches inbound messages until the connection drops or
// ctx is cancelled. Exported for callers that construct via NewClient.
func (c *Client) ReadLoop(ctx context.Context) { c.readLoop(ctx) }

func (c *Client) readLoop(ctx context.Context) {
	defer c.Close()
	log := pslog.Ctx(ctx)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.connected.Store(false)
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("session channel closed", "err", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			log.Warn("dropping malformed message", "err", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	c.subMu.Lock()
	handlers := make([]func(Envelope), 0, len(c.subs[env.Type]))
	for _, fn := range c.subs[env.Type] {
		handlers = append(handlers, fn)
	}
	c.subMu.Unlock()
	for _, fn := range handlers {
		fn(env)
	}
}
