package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// Phase is the top-level lifecycle state of a session.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseAwaitingConnection Phase = "awaiting_connection"
	PhaseStreaming          Phase = "streaming"
	PhaseSettled            Phase = "settled"
	PhaseFailed             Phase = "failed"
)

// Terminal reports whether the session accepts no further content.
func (p Phase) Terminal() bool {
	return p == PhaseSettled || p == PhaseFailed
}

// Session is the state of one research query from submission to
// settlement or failure. It is owned exclusively by the session
// controller; everything published to the rendering layer is a Clone.
type Session struct {
	ID     SessionID
	UserID string
	Prompt string
	Phase  Phase

	Rationale TextBuffer
	Answer    TextBuffer

	// Citations keeps the last citations payload. Index position is
	// 1-based reference order for inline markers.
	Citations []Citation

	// Clarification, when set, makes the session terminal without
	// rationale or answer.
	Clarification string

	// SupervisorPlan and SubagentTasks are informational only and
	// never gate completion.
	SupervisorPlan string
	SubagentTasks  []string

	ErrorMessage string

	CreatedAt time.Time
}

// Clone returns a deep copy safe to hand to the renderer.
func (s *Session) Clone() *Session {
	c := *s
	c.Citations = slices.Clone(s.Citations)
	c.SubagentTasks = slices.Clone(s.SubagentTasks)
	return &c
}

// Query is the single client-to-server frame, sent once per query on
// connection readiness.
type Query struct {
	UserID string `json:"user_id"`
	Prompt string `json:"prompt"`
}
