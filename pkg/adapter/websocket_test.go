package adapter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/mnemo/pkg/adapter"
	"github.com/m-mizutani/mnemo/pkg/model"
)

type recordHandler struct {
	frames chan []byte
	errs   chan error
}

func newRecordHandler() *recordHandler {
	return &recordHandler{
		frames: make(chan []byte, 16),
		errs:   make(chan error, 16),
	}
}

func (x *recordHandler) OnFrame(data []byte)      { x.frames <- data }
func (x *recordHandler) OnTransportError(e error) { x.errs <- e }

func (x *recordHandler) nextFrame(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-x.frames:
		return data
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func (x *recordHandler) nextErr(t *testing.T) error {
	t.Helper()
	select {
	case err := <-x.errs:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for transport error")
		return nil
	}
}

var upgrader = websocket.Upgrader{}

// echoServer upgrades each request, then for every received query emits the
// given frames. It closes the connection after serving one query when
// closeAfter is set.
func echoServer(t *testing.T, conns *atomic.Int32, closeAfter bool, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		if conns != nil {
			conns.Add(1)
		}

		for {
			var q model.Query
			if err := conn.ReadJSON(&q); err != nil {
				return
			}
			for _, f := range frames {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
					return
				}
			}
			if closeAfter {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketSubmitAndReceive(t *testing.T) {
	srv := echoServer(t, nil, true,
		`{"type":"thinking"}`,
		`{"type":"done"}`,
	)
	defer srv.Close()

	backend := adapter.NewWebSocket(wsURL(srv))
	defer backend.Close()
	h := newRecordHandler()

	gt.False(t, backend.Connected())
	err := backend.Submit(context.Background(), &model.Query{UserID: "u1", Prompt: "q"}, h)
	gt.NoError(t, err)
	gt.True(t, backend.Connected())

	gt.S(t, string(h.nextFrame(t))).Contains("thinking")
	gt.S(t, string(h.nextFrame(t))).Contains("done")

	// The server hangs up after the frames; the handler hears about it once.
	gt.V(t, h.nextErr(t)).NotNil()
}

func TestWebSocketReusesConnection(t *testing.T) {
	var conns atomic.Int32
	srv := echoServer(t, &conns, false, `{"type":"done"}`)
	defer srv.Close()

	backend := adapter.NewWebSocket(wsURL(srv))
	defer backend.Close()
	h := newRecordHandler()

	for i := 0; i < 3; i++ {
		err := backend.Submit(context.Background(), &model.Query{UserID: "u1", Prompt: "q"}, h)
		gt.NoError(t, err)
		h.nextFrame(t)
	}

	gt.Equal(t, conns.Load(), int32(1))
}

func TestWebSocketRedialsAfterDrop(t *testing.T) {
	var conns atomic.Int32
	srv := echoServer(t, &conns, true, `{"type":"done"}`)
	defer srv.Close()

	backend := adapter.NewWebSocket(wsURL(srv))
	defer backend.Close()
	h := newRecordHandler()

	err := backend.Submit(context.Background(), &model.Query{UserID: "u1", Prompt: "first"}, h)
	gt.NoError(t, err)
	h.nextFrame(t)
	h.nextErr(t)
	gt.False(t, backend.Connected())

	err = backend.Submit(context.Background(), &model.Query{UserID: "u1", Prompt: "second"}, h)
	gt.NoError(t, err)
	h.nextFrame(t)

	gt.Equal(t, conns.Load(), int32(2))
}

func TestWebSocketDialFailure(t *testing.T) {
	backend := adapter.NewWebSocket("ws://127.0.0.1:1/api/v1/multiagent/ws/multiagent")
	h := newRecordHandler()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := backend.Submit(ctx, &model.Query{UserID: "u1", Prompt: "q"}, h)
	gt.Error(t, err)
	gt.False(t, backend.Connected())
}

func TestWebSocketQueryPayload(t *testing.T) {
	received := make(chan model.Query, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var q model.Query
		if err := conn.ReadJSON(&q); err != nil {
			return
		}
		received <- q
	}))
	defer srv.Close()

	backend := adapter.NewWebSocket(wsURL(srv))
	defer backend.Close()

	err := backend.Submit(context.Background(), &model.Query{UserID: "u1", Prompt: "how do memories form?"}, newRecordHandler())
	gt.NoError(t, err)

	select {
	case q := <-received:
		gt.Equal(t, q.UserID, "u1")
		gt.Equal(t, q.Prompt, "how do memories form?")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for query")
	}
}
