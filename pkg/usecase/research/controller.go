package research

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mnemo/pkg/adapter"
	"github.com/m-mizutani/mnemo/pkg/model"
	"github.com/m-mizutani/mnemo/pkg/utils/logging"
)

// Fixed user-facing failure messages.
const (
	SubmitFailedMessage    = "Sorry, there was an error processing your request."
	TransportFailedMessage = "Sorry, an error occurred."
)

var ErrSessionInFlight = goerr.New("a session is already streaming")

// SessionView pairs a session value with its resolved display segments.
type SessionView struct {
	model.Session

	RationaleSegments []Segment
	AnswerSegments    []Segment
}

// Snapshot is the immutable view model published after every transition.
// The renderer always reads a whole snapshot, never a half-updated one.
type Snapshot struct {
	Sessions   []SessionView
	Thinking   bool
	Processing bool
}

// Notify receives snapshots in publication order. It runs on the event
// delivery path and must not call back into the Controller.
type Notify func(Snapshot)

type sessionState struct {
	sess      *model.Session
	citations *CitationIndex
}

// Controller owns every session's end-to-end state. All transitions
// happen on delivery of a transport frame or a user action; each handler
// computes the full next snapshot before publishing.
type Controller struct {
	backend adapter.Backend
	userID  string
	notify  Notify
	logger  *slog.Logger

	mu         sync.Mutex
	order      []*sessionState
	byID       map[model.SessionID]*sessionState
	active     *sessionState
	processing bool
	thinking   bool
}

type ControllerOption func(*Controller)

func WithNotify(fn Notify) ControllerOption {
	return func(c *Controller) {
		c.notify = fn
	}
}

func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func NewController(backend adapter.Backend, userID string, opts ...ControllerOption) *Controller {
	c := &Controller{
		backend: backend,
		userID:  userID,
		logger:  logging.Default(),
		byID:    map[model.SessionID]*sessionState{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Submit starts a new session for prompt. A submission while another
// session is still streaming is rejected with ErrSessionInFlight until
// that session reaches a terminal phase.
func (c *Controller) Submit(ctx context.Context, prompt string) (model.SessionID, error) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return "", goerr.Wrap(ErrSessionInFlight, "submission rejected")
	}

	st := &sessionState{
		sess: &model.Session{
			ID:        model.NewSessionID(),
			UserID:    c.userID,
			Prompt:    prompt,
			Phase:     model.PhaseAwaitingConnection,
			CreatedAt: time.Now(),
		},
		citations: NewCitationIndex(),
	}
	c.addLocked(st)
	c.active = st
	c.processing = true
	c.publishLocked()
	c.mu.Unlock()

	if err := c.backend.Submit(ctx, &model.Query{UserID: c.userID, Prompt: prompt}, c); err != nil {
		c.mu.Lock()
		st.sess.Phase = model.PhaseFailed
		st.sess.ErrorMessage = SubmitFailedMessage
		c.processing = false
		c.thinking = false
		c.publishLocked()
		c.mu.Unlock()
		return st.sess.ID, goerr.Wrap(err, "failed to submit query", goerr.V("session_id", st.sess.ID))
	}

	return st.sess.ID, nil
}

// Clear discards all session state. The underlying connection stays open.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.byID = map[model.SessionID]*sessionState{}
	c.active = nil
	c.processing = false
	c.thinking = false
	c.publishLocked()
}

// Snapshot returns the current view model.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// OnFrame implements adapter.FrameHandler. Decode failures are logged and
// dropped; the transport may interleave unrelated noise.
func (c *Controller) OnFrame(data []byte) {
	ev, err := model.DecodeEvent(data)
	if err != nil {
		c.logger.Debug("dropping frame", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.routeLocked(ev)
	if st == nil {
		return
	}
	c.applyLocked(st, ev)
	c.publishLocked()
}

// OnTransportError implements adapter.FrameHandler. The backend closes the
// socket after done, so a close observed with no session mid-flight is
// benign; a close before settlement fails the active session.
func (c *Controller) OnTransportError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.active
	if st == nil || st.sess.Phase.Terminal() {
		c.logger.Debug("connection closed while idle", "error", err)
		return
	}

	c.logger.Warn("transport failed mid-session", "error", err, "session_id", st.sess.ID)
	st.sess.Phase = model.PhaseFailed
	st.sess.ErrorMessage = TransportFailedMessage
	c.thinking = false
	c.processing = false
	c.publishLocked()
}

func (c *Controller) addLocked(st *sessionState) {
	c.order = append(c.order, st)
	c.byID[st.sess.ID] = st
}

// routeLocked finds the session an event belongs to. An event naming an
// unknown session id synthesizes a new terminal-leaning session rather
// than being dropped, guarding against a session whose first frame was
// lost to a decode failure. A stray thinking event routes nowhere.
func (c *Controller) routeLocked(ev *model.Event) *sessionState {
	if ev.SessionID != "" {
		if st, ok := c.byID[ev.SessionID]; ok {
			return st
		}
		if ev.Type == model.EventThinking {
			return nil
		}
		return c.synthesizeLocked(ev.SessionID)
	}

	if c.active != nil {
		return c.active
	}
	if ev.Type == model.EventThinking {
		return nil
	}
	return c.synthesizeLocked(model.NewSessionID())
}

func (c *Controller) synthesizeLocked(id model.SessionID) *sessionState {
	c.logger.Debug("synthesizing session for unattributed event", "session_id", id)
	st := &sessionState{
		sess: &model.Session{
			ID:        id,
			UserID:    c.userID,
			Phase:     model.PhaseSettled,
			CreatedAt: time.Now(),
		},
		citations: NewCitationIndex(),
	}
	c.addLocked(st)
	return st
}

func (c *Controller) applyLocked(st *sessionState, ev *model.Event) {
	s := st.sess
	switch ev.Type {
	case model.EventThinking:
		s.Phase = model.PhaseStreaming
		c.thinking = true

	case model.EventRationaleToken:
		s.Rationale.AppendToken(ev.Token)
		c.markStreamingLocked(s)
	case model.EventRationaleComplete, model.EventRationale:
		s.Rationale.Settle(ev.Rationale, false)
	case model.EventRationaleAnnotatedHTML:
		s.Rationale.Settle(ev.RationaleHTML, true)

	case model.EventAnswerToken:
		s.Answer.AppendToken(ev.Token)
		c.markStreamingLocked(s)
	case model.EventAnswerComplete, model.EventAnswer:
		s.Answer.Settle(ev.Answer, false)
	case model.EventAnswerAnnotatedHTML:
		s.Answer.Settle(ev.AnswerHTML, true)

	case model.EventCitations:
		st.citations.Set(ev.Citations)
		s.Citations = st.citations.Records()

	case model.EventSupervisorPlan:
		s.SupervisorPlan = ev.SupervisorPlan
	case model.EventSubagentTasks:
		s.SubagentTasks = slices.Clone(ev.SubagentTasks)

	case model.EventClarification:
		s.Clarification = ev.Clarifications.Join()
		s.Phase = model.PhaseSettled
		c.finishLocked(st)

	case model.EventDone:
		if s.Clarification == "" {
			s.Phase = model.PhaseSettled
		}
		c.finishLocked(st)
	}
}

func (c *Controller) markStreamingLocked(s *model.Session) {
	if !s.Phase.Terminal() {
		s.Phase = model.PhaseStreaming
	}
}

func (c *Controller) finishLocked(st *sessionState) {
	if st == c.active {
		c.thinking = false
		c.processing = false
	}
}

func (c *Controller) publishLocked() {
	if c.notify == nil {
		return
	}
	c.notify(c.snapshotLocked())
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Sessions:   make([]SessionView, 0, len(c.order)),
		Thinking:   c.thinking,
		Processing: c.processing,
	}
	for _, st := range c.order {
		snap.Sessions = append(snap.Sessions, SessionView{
			Session:           *st.sess.Clone(),
			RationaleSegments: Resolve(st.sess.Rationale, st.citations),
			AnswerSegments:    Resolve(st.sess.Answer, st.citations),
		})
	}
	return snap
}
