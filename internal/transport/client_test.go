package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsPair spins up a websocket echo-capable server and returns a dialed
// client plus the server side of the connection.
func wsPair(t *testing.T) (*Client, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverConn := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConn <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-serverConn:
		t.Cleanup(func() { conn.Close() })
		return client, conn
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the connection")
		return nil, nil
	}
}

// TestClientDispatchByType verifies inbound envelopes reach only the
// subscribers of their type.
func TestClientDispatchByType(t *testing.T) {
	client, server := wsPair(t)

	data := make(chan Envelope, 1)
	input := make(chan Envelope, 1)
	client.Subscribe(TypeData, func(env Envelope) { data <- env })
	client.Subscribe(TypeInput, func(env Envelope) { input <- env })

	require.NoError(t, server.WriteJSON(Envelope{
		Type: TypeData, SessionID: "s1", Seq: 7, Data: "hello",
	}))

	select {
	case env := <-data:
		assert.Equal(t, int64(7), env.Seq)
		assert.Equal(t, "hello", env.Data)
	case <-time.After(5 * time.Second):
		t.Fatal("data handler never fired")
	}
	select {
	case <-input:
		t.Fatal("input handler must not see a data envelope")
	default:
	}
}

// TestClientPublishRoundTrip verifies an outbound envelope arrives
// intact, including optional metadata pointers.
func TestClientPublishRoundTrip(t *testing.T) {
	client, server := wsPair(t)

	cols, rows := 80, 24
	require.NoError(t, client.Publish(Envelope{
		Type: TypeResize, SessionID: "s1", Cols: &cols, Rows: &rows,
	}))

	var got Envelope
	require.NoError(t, server.ReadJSON(&got))
	assert.Equal(t, TypeResize, got.Type)
	require.NotNil(t, got.Cols)
	assert.Equal(t, 80, *got.Cols)
	assert.Equal(t, 24, *got.Rows)
	assert.Nil(t, got.HasHistory, "absent metadata stays absent")
}

// TestClientUnsubscribeStopsDelivery verifies the unsubscribe function
// removes the handler.
func TestClientUnsubscribeStopsDelivery(t *testing.T) {
	client, server := wsPair(t)

	seen := make(chan struct{}, 2)
	unsub := client.Subscribe(TypeData, func(Envelope) { seen <- struct{}{} })

	require.NoError(t, server.WriteJSON(Envelope{Type: TypeData}))
	select {
	case <-seen:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never fired")
	}

	unsub()
	require.NoError(t, server.WriteJSON(Envelope{Type: TypeData}))
	time.Sleep(100 * time.Millisecond)
	select {
	case <-seen:
		t.Fatal("unsubscribed handler fired")
	default:
	}
}

// TestClientMalformedMessageSkipped verifies garbage on the wire does
// not kill the read loop.
func TestClientMalformedMessageSkipped(t *testing.T) {
	client, server := wsPair(t)

	got := make(chan Envelope, 1)
	client.Subscribe(TypeData, func(env Envelope) { got <- env })

	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, server.WriteJSON(Envelope{Type: TypeData, Data: "after-garbage"}))

	select {
	case env := <-got:
		assert.Equal(t, "after-garbage", env.Data)
	case <-time.After(5 * time.Second):
		t.Fatal("read loop died on malformed input")
	}
}

// TestClientDisconnectMarksAndSilences verifies a closed connection
// flips Connected and publishes become silent no-ops.
func TestClientDisconnectMarksAndSilences(t *testing.T) {
	client, server := wsPair(t)
	require.True(t, client.Connected())

	server.Close()
	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("read loop never observed the close")
	}

	assert.False(t, client.Connected())
	assert.NoError(t, client.Publish(Envelope{Type: TypeData, Data: "dropped"}))
}

// TestSessionChannelSendsTypedMessages verifies the typed helpers emit
// the right envelopes.
func TestSessionChannelSendsTypedMessages(t *testing.T) {
	client, server := wsPair(t)
	ch := NewSessionChannel(client, "s1")

	require.NoError(t, ch.SendResize("s1", 100, 40))
	var resize Envelope
	require.NoError(t, server.ReadJSON(&resize))
	assert.Equal(t, TypeResize, resize.Type)
	assert.Equal(t, 100, *resize.Cols)

	require.NoError(t, ch.RequestFullHistory("s1", 5000))
	var hist Envelope
	require.NoError(t, server.ReadJSON(&hist))
	assert.Equal(t, TypeRequestFullHistory, hist.Type)
	assert.Equal(t, 5000, hist.MaxLines)

	require.NoError(t, ch.SendInput("ls\n"))
	var in Envelope
	require.NoError(t, server.ReadJSON(&in))
	assert.Equal(t, TypeInput, in.Type)
	assert.Equal(t, "ls\n", in.Data)
}
