package model

// TextState is the assembly state of one streamed text buffer.
type TextState string

const (
	TextEmpty     TextState = ""
	TextStreaming TextState = "streaming"
	TextSettled   TextState = "settled"
)

// TextBuffer accumulates streamed token fragments and accepts a full
// replacement at any point. Token concatenation is an approximation; the
// settle payload, when present, always wins.
type TextBuffer struct {
	Text      string
	Streaming bool

	// Annotated marks that the settled text carries positional citation
	// markers (the *_annotated_html payload form).
	Annotated bool

	State TextState
}

// AppendToken concatenates a token fragment. Tokens arriving after a
// settle are ignored; re-entering streaming would regress the rendered
// text past its authoritative value.
func (b *TextBuffer) AppendToken(token string) {
	if b.State == TextSettled {
		return
	}
	b.Text += token
	b.State = TextStreaming
	b.Streaming = true
}

// Settle replaces the buffer with its final value. Valid from any state
// and idempotent: settling twice keeps the latest payload.
func (b *TextBuffer) Settle(text string, annotated bool) {
	b.Text = text
	b.Annotated = annotated
	b.State = TextSettled
	b.Streaming = false
}

// Settled reports whether the buffer holds its authoritative final value.
func (b TextBuffer) Settled() bool {
	return b.State == TextSettled
}
