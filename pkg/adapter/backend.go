package adapter

import (
	"context"

	"github.com/m-mizutani/mnemo/pkg/model"
)

// FrameHandler receives raw frames and transport failures from a Backend.
// Decoding and session routing are the caller's concern.
type FrameHandler interface {
	OnFrame(data []byte)

	// OnTransportError is called once when the connection errors or
	// closes. The backend closes the socket after a completed query, so
	// the handler decides whether the close is benign.
	OnTransportError(err error)
}

// Backend is the persistent streaming connection to the research backend.
type Backend interface {
	// Submit sends one query over the connection, opening it lazily if
	// needed and reusing it otherwise.
	Submit(ctx context.Context, query *model.Query, h FrameHandler) error

	// Connected reports whether the connection is currently open.
	Connected() bool

	Close() error
}
