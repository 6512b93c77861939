package model

import (
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// EventType discriminates server-to-client frames.
type EventType string

const (
	EventThinking               EventType = "thinking"
	EventRationaleToken         EventType = "rationale_token"
	EventRationaleComplete      EventType = "rationale_complete"
	EventRationaleAnnotatedHTML EventType = "rationale_annotated_html"
	EventRationale              EventType = "rationale"
	EventAnswerToken            EventType = "answer_token"
	EventAnswerComplete         EventType = "answer_complete"
	EventAnswerAnnotatedHTML    EventType = "answer_annotated_html"
	EventAnswer                 EventType = "answer"
	EventCitations              EventType = "citations"
	EventSupervisorPlan         EventType = "supervisor_plan"
	EventSubagentTasks          EventType = "subagent_tasks"
	EventClarification          EventType = "clarification"
	EventDone                   EventType = "done"
)

var (
	ErrMalformedFrame   = goerr.New("malformed frame")
	ErrUnknownEventType = goerr.New("unknown event type")
)

// Event is the tagged union of protocol frames. Only the fields for the
// frame's Type are populated; the rest stay zero.
type Event struct {
	Type EventType `json:"type"`

	// SessionID correlates a frame with a session. The backend may omit
	// it, in which case the frame belongs to the active session.
	SessionID SessionID `json:"session_id,omitempty"`

	Token          string         `json:"token,omitempty"`
	Rationale      string         `json:"rationale,omitempty"`
	RationaleHTML  string         `json:"rationale_html,omitempty"`
	Answer         string         `json:"answer,omitempty"`
	AnswerHTML     string         `json:"answer_html,omitempty"`
	Citations      []Citation     `json:"citations,omitempty"`
	SupervisorPlan string         `json:"supervisor_plan,omitempty"`
	SubagentTasks  []string       `json:"subagent_tasks,omitempty"`
	Clarifications Clarifications `json:"clarifications,omitempty"`
}

// Clarifications accepts both a bare string and a list of strings on the
// wire; the backend emits either form.
type Clarifications []string

func (c *Clarifications) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*c = Clarifications{one}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return goerr.Wrap(err, "clarifications must be a string or a list of strings")
	}
	*c = Clarifications(many)
	return nil
}

// Join flattens the clarification list with blank-line separators.
func (c Clarifications) Join() string {
	return strings.Join(c, "\n\n")
}

// DecodeEvent parses one raw transport frame into exactly one Event, or
// fails. A failure must be swallowed by the caller: malformed frames never
// terminate a session.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, goerr.Wrap(ErrMalformedFrame, err.Error())
	}
	if !ev.Type.known() {
		return nil, goerr.Wrap(ErrUnknownEventType, "dropping frame", goerr.V("type", ev.Type))
	}
	return &ev, nil
}

func (t EventType) known() bool {
	switch t {
	case EventThinking,
		EventRationaleToken, EventRationaleComplete, EventRationaleAnnotatedHTML, EventRationale,
		EventAnswerToken, EventAnswerComplete, EventAnswerAnnotatedHTML, EventAnswer,
		EventCitations, EventSupervisorPlan, EventSubagentTasks, EventClarification, EventDone:
		return true
	default:
		return false
	}
}
