package adapter

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mnemo/pkg/model"
)

// WebSocketBackend owns at most one websocket connection to the backend.
// The connection is dialed on the first Submit and reused by later ones;
// a dropped connection is re-dialed on the next Submit.
type WebSocketBackend struct {
	url    string
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

type WebSocketOption func(*WebSocketBackend)

func WithDialer(d *websocket.Dialer) WebSocketOption {
	return func(w *WebSocketBackend) {
		w.dialer = d
	}
}

func NewWebSocket(url string, opts ...WebSocketOption) *WebSocketBackend {
	w := &WebSocketBackend{
		url:    url,
		dialer: websocket.DefaultDialer,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *WebSocketBackend) Submit(ctx context.Context, query *model.Query, h FrameHandler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		conn, _, err := w.dialer.DialContext(ctx, w.url, nil)
		if err != nil {
			return goerr.Wrap(err, "failed to dial backend", goerr.V("url", w.url))
		}
		w.conn = conn
		go w.readLoop(conn, h)
	}

	if err := w.conn.WriteJSON(query); err != nil {
		w.dropLocked(w.conn)
		return goerr.Wrap(err, "failed to send query", goerr.V("user_id", query.UserID))
	}

	return nil
}

func (w *WebSocketBackend) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

func (w *WebSocketBackend) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	conn := w.conn
	w.conn = nil
	if err := conn.Close(); err != nil {
		return goerr.Wrap(err, "failed to close connection")
	}
	return nil
}

// readLoop delivers inbound frames until the connection dies. The handler
// is told about the death exactly once.
func (w *WebSocketBackend) readLoop(conn *websocket.Conn, h FrameHandler) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			w.drop(conn)
			h.OnTransportError(err)
			return
		}
		h.OnFrame(data)
	}
}

func (w *WebSocketBackend) drop(conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropLocked(conn)
}

func (w *WebSocketBackend) dropLocked(conn *websocket.Conn) {
	if w.conn == conn {
		w.conn = nil
	}
	_ = conn.Close()
}
