package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/m-mizutani/mnemo/pkg/model"
	"github.com/m-mizutani/mnemo/pkg/usecase/research"
)

// renderSession prints one terminal-phase session: supervisor plan and
// subtasks first, then either the clarification or the reasoning and
// answer with their citation references, then the numbered source list.
func renderSession(w io.Writer, view research.SessionView) {
	if view.Phase == model.PhaseFailed {
		fmt.Fprintf(w, "%s\n", view.ErrorMessage)
		return
	}

	if view.SupervisorPlan != "" {
		renderHeading(w, "Thinking (Supervisor Plan)")
		fmt.Fprintf(w, "%s\n", view.SupervisorPlan)
	}
	if len(view.SubagentTasks) > 0 {
		renderHeading(w, "Subtasks")
		for _, task := range view.SubagentTasks {
			fmt.Fprintf(w, "- %s\n", task)
		}
	}

	if view.Clarification != "" {
		renderHeading(w, "Clarifications")
		fmt.Fprintf(w, "%s\n", view.Clarification)
		return
	}

	if len(view.RationaleSegments) > 0 {
		renderHeading(w, "Reasoning")
		renderSegments(w, view.RationaleSegments, view.Citations)
	}
	if len(view.AnswerSegments) > 0 {
		renderHeading(w, "Final Answer (with Citations)")
		renderSegments(w, view.AnswerSegments, view.Citations)
	}

	if len(view.Citations) > 0 {
		renderHeading(w, "Sources")
		for i, c := range view.Citations {
			renderSourceLine(w, i+1, c)
		}
	}
}

func renderHeading(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
}

// renderSegments writes segments sequentially; a citation-bound segment
// renders as its text followed by the 1-based source reference.
func renderSegments(w io.Writer, segments []research.Segment, citations []model.Citation) {
	for _, seg := range segments {
		if seg.Citation == nil {
			fmt.Fprint(w, seg.Text)
			continue
		}
		if n := citationPosition(citations, seg.Citation.ID); n > 0 {
			fmt.Fprintf(w, "%s [%d]", seg.Text, n)
		} else {
			fmt.Fprint(w, seg.Text)
		}
	}
	fmt.Fprintln(w)
}

func citationPosition(citations []model.Citation, id string) int {
	for i, c := range citations {
		if c.ID == id {
			return i + 1
		}
	}
	return 0
}

func renderSourceLine(w io.Writer, n int, c model.Citation) {
	fmt.Fprintf(w, "[%d] %s", n, c.Title)
	if c.Relevance != nil {
		fmt.Fprintf(w, " (relevance %d%%)", int(*c.Relevance*100))
	}
	fmt.Fprintln(w)
}

// renderCitation prints the full record, the terminal equivalent of the
// citation detail view.
func renderCitation(w io.Writer, n int, c model.Citation) {
	fmt.Fprintf(w, "\nMemory Details [%d]\n", n)
	fmt.Fprintf(w, "Title:     %s\n", c.Title)
	fmt.Fprintf(w, "Memory ID: %s\n", c.ID)
	fmt.Fprintf(w, "Content:\n%s\n", c.Content)
	if c.Timestamp != "" {
		fmt.Fprintf(w, "Timestamp: %s\n", c.Timestamp)
	}
	if c.Relevance != nil {
		fmt.Fprintf(w, "Relevance: %d%%\n", int(*c.Relevance*100))
	}
	if c.Source != "" {
		fmt.Fprintf(w, "Source:    %s\n", c.Source)
	}
}
