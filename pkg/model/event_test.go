package model_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/mnemo/pkg/model"
)

func TestDecodeEvent(t *testing.T) {
	testCases := []struct {
		name  string
		frame string
		check func(t *testing.T, ev *model.Event)
	}{
		{
			name:  "thinking has no payload",
			frame: `{"type":"thinking"}`,
			check: func(t *testing.T, ev *model.Event) {
				gt.Equal(t, ev.Type, model.EventThinking)
			},
		},
		{
			name:  "rationale token",
			frame: `{"type":"rationale_token","token":"Mem"}`,
			check: func(t *testing.T, ev *model.Event) {
				gt.Equal(t, ev.Type, model.EventRationaleToken)
				gt.Equal(t, ev.Token, "Mem")
			},
		},
		{
			name:  "rationale complete",
			frame: `{"type":"rationale_complete","rationale":"full text"}`,
			check: func(t *testing.T, ev *model.Event) {
				gt.Equal(t, ev.Rationale, "full text")
			},
		},
		{
			name:  "annotated answer",
			frame: `{"type":"answer_annotated_html","answer_html":"<cite data-citation=1>x</cite>"}`,
			check: func(t *testing.T, ev *model.Event) {
				gt.Equal(t, ev.Type, model.EventAnswerAnnotatedHTML)
				gt.S(t, ev.AnswerHTML).Contains("data-citation")
			},
		},
		{
			name:  "citations list",
			frame: `{"type":"citations","citations":[{"id":"c1","title":"Sleep Study","content":"zzz","relevance":0.9}]}`,
			check: func(t *testing.T, ev *model.Event) {
				gt.Equal(t, len(ev.Citations), 1)
				gt.Equal(t, ev.Citations[0].ID, "c1")
				gt.V(t, ev.Citations[0].Relevance).NotNil()
			},
		},
		{
			name:  "subagent tasks",
			frame: `{"type":"subagent_tasks","subagent_tasks":["retrieve","rank"]}`,
			check: func(t *testing.T, ev *model.Event) {
				gt.Equal(t, ev.SubagentTasks, []string{"retrieve", "rank"})
			},
		},
		{
			name:  "clarification as list",
			frame: `{"type":"clarification","clarifications":["which year?","which study?"]}`,
			check: func(t *testing.T, ev *model.Event) {
				gt.Equal(t, ev.Clarifications.Join(), "which year?\n\nwhich study?")
			},
		},
		{
			name:  "clarification as bare string",
			frame: `{"type":"clarification","clarifications":"which year?"}`,
			check: func(t *testing.T, ev *model.Event) {
				gt.Equal(t, ev.Clarifications.Join(), "which year?")
			},
		},
		{
			name:  "session correlation id",
			frame: `{"type":"done","session_id":"s-1"}`,
			check: func(t *testing.T, ev *model.Event) {
				gt.Equal(t, ev.SessionID, model.SessionID("s-1"))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := model.DecodeEvent([]byte(tc.frame))
			gt.NoError(t, err)
			gt.V(t, ev).NotNil()
			tc.check(t, ev)
		})
	}
}

func TestDecodeEventFailures(t *testing.T) {
	testCases := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{"malformed json", `{"type":`, model.ErrMalformedFrame},
		{"unknown type", `{"type":"error","message":"boom"}`, model.ErrUnknownEventType},
		{"missing type", `{"token":"x"}`, model.ErrUnknownEventType},
		{"non-object frame", `"ping"`, model.ErrMalformedFrame},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := model.DecodeEvent([]byte(tc.frame))
			gt.Error(t, err)
			gt.True(t, errors.Is(err, tc.wantErr))
			gt.V(t, ev).Nil()
		})
	}
}
