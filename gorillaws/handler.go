// Package gorillaws binds the card streaming contract to
// github.com/gorilla/websocket. It mirrors the cardws adapter over the
// gorilla upgrader so hosts already on that stack can mount card routes
// without switching WebSocket libraries.
package gorillaws

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adimis-ai/cereon-sdk/params"
	"github.com/adimis-ai/cereon-sdk/stream"
)

// Options configure a websocket card route.
type Options struct {
	stream.Options
	// WaitForInitialMessage blocks for one client message to extract params
	// when the handshake query string carried none.
	WaitForInitialMessage bool
	// CheckOrigin overrides the upgrader origin check. Nil applies gorilla's
	// same-origin default.
	CheckOrigin func(r *http.Request) bool
	// ReadLimit caps the size of inbound messages in bytes. Zero means no cap.
	ReadLimit int64
}

// NewHandler returns an http.Handler that upgrades requests with the gorilla
// upgrader and serves the card streaming contract. A nil handler is a
// programming error and panics at construction.
func NewHandler(handler stream.Handler, opts Options) http.Handler {
	if handler == nil {
		panic("gorillaws: handler is required")
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     opts.CheckOrigin,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response
			log.Printf("gorillaws: upgrade failed for remote=%s: %v", r.RemoteAddr, err)
			return
		}
		serveConn(r, conn, handler, opts)
	})
}

type sender struct {
	conn *websocket.Conn
}

func (s sender) SendJSON(v any) error {
	return s.conn.WriteJSON(v)
}

func (s sender) Close() error {
	return s.conn.Close()
}

func serveConn(r *http.Request, conn *websocket.Conn, handler stream.Handler, opts Options) {
	defer func() {
		_ = conn.Close()
	}()
	if opts.ReadLimit > 0 {
		conn.SetReadLimit(opts.ReadLimit)
	}

	connParams := connectionParams(r, conn, opts)

	session := stream.NewSession(sender{conn: conn}, handler, connParams, opts.Options)
	defer session.Close()
	session.Start(r.Context())

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		session.HandleMessage(raw)
	}
}

// connectionParams resolves the handshake parameter mapping. A malformed
// explicit params value produces an error frame and degrades to an empty
// mapping rather than rejecting the connection.
func connectionParams(r *http.Request, conn *websocket.Conn, opts Options) map[string]any {
	payload := map[string]any{}
	parsed, err := params.FromQuery(r.URL.Query())
	if err != nil {
		_ = conn.WriteJSON(map[string]any{
			"action":    "error",
			"message":   err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	} else {
		payload = parsed
	}

	if len(payload) == 0 && opts.WaitForInitialMessage {
		if _, raw, err := conn.ReadMessage(); err == nil {
			payload = params.FromInitialMessage(raw)
		}
	}
	return payload
}
