// Package cardws binds the card streaming contract to
// golang.org/x/net/websocket. The adapter accepts the socket, normalizes
// handshake parameters, and feeds client messages into a stream.Session that
// owns subscriptions, heartbeat, and handler streaming.
package cardws

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/adimis-ai/cereon-sdk/params"
	"github.com/adimis-ai/cereon-sdk/stream"
)

// Options configure a websocket card route.
type Options struct {
	stream.Options
	// WaitForInitialMessage blocks for one client message to extract params
	// when the handshake query string carried none.
	WaitForInitialMessage bool
}

// NewHandler returns an http.Handler that upgrades requests to WebSocket and
// serves the card streaming contract. A nil handler is a programming error
// and panics at construction.
func NewHandler(handler stream.Handler, opts Options) http.Handler {
	if handler == nil {
		panic("cardws: handler is required")
	}
	return websocket.Handler(func(conn *websocket.Conn) {
		serveConn(conn, handler, opts)
	})
}

type sender struct {
	conn *websocket.Conn
}

func (s sender) SendJSON(v any) error {
	return websocket.JSON.Send(s.conn, v)
}

func (s sender) Close() error {
	return s.conn.Close()
}

func serveConn(conn *websocket.Conn, handler stream.Handler, opts Options) {
	defer func() {
		_ = conn.Close()
	}()

	connParams := connectionParams(conn, opts)

	session := stream.NewSession(sender{conn: conn}, handler, connParams, opts.Options)
	defer session.Close()

	ctx := context.Background()
	if req := conn.Request(); req != nil {
		ctx = req.Context()
	}
	session.Start(ctx)

	for {
		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			return
		}
		session.HandleMessage(raw)
	}
}

// connectionParams resolves the handshake parameter mapping. A malformed
// explicit params value produces an error frame and degrades to an empty
// mapping rather than rejecting the connection.
func connectionParams(conn *websocket.Conn, opts Options) map[string]any {
	payload := map[string]any{}
	if req := conn.Request(); req != nil {
		parsed, err := params.FromQuery(req.URL.Query())
		if err != nil {
			_ = websocket.JSON.Send(conn, map[string]any{
				"action":    "error",
				"message":   err.Error(),
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		} else {
			payload = parsed
		}
	}

	if len(payload) == 0 && opts.WaitForInitialMessage {
		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err == nil {
			payload = params.FromInitialMessage(raw)
		}
	}
	return payload
}
