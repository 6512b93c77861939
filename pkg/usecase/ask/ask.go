package ask

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mnemo/pkg/adapter"
	"google.golang.org/genai"
)

// systemPreamble is the fixed memory-research persona for the single-shot
// completion path.
const systemPreamble = `You are a memory research agent. You have access to a comprehensive database of memories and research about human memory, cognition, and neuroscience.

When responding to queries:
1. First, think through the problem step by step
2. Search through relevant memories and research
3. Provide citations to specific memories/research
4. Give a comprehensive, well-researched answer

Your responses should be thorough, scientific, and backed by the memory database.`

// DefaultTimeout bounds one completion end to end.
const DefaultTimeout = 30 * time.Second

// Message is one role/content entry of the request conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UseCase answers a message list with an incrementally delivered
// plain-text completion. It is independent of the streaming session path
// and not session-aware.
type UseCase struct {
	gemini  adapter.Gemini
	timeout time.Duration
}

type Option func(*UseCase)

func WithTimeout(d time.Duration) Option {
	return func(u *UseCase) {
		if d > 0 {
			u.timeout = d
		}
	}
}

func New(gemini adapter.Gemini, opts ...Option) *UseCase {
	u := &UseCase{
		gemini:  gemini,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Ask streams the completion for messages. Every delivered chunk is passed
// to onChunk as it arrives; the concatenated text is returned when the
// stream ends.
func (u *UseCase) Ask(ctx context.Context, messages []Message, onChunk func(chunk string)) (string, error) {
	if len(messages) == 0 {
		return "", goerr.New("no messages")
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		contents = append(contents, genai.NewContentFromText(m.Content, roleOf(m.Role)))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPreamble, ""),
	}

	var sb strings.Builder
	for resp, err := range u.gemini.GenerateContentStream(ctx, contents, config) {
		if err != nil {
			return sb.String(), goerr.Wrap(err, "failed to stream completion")
		}
		chunk := responseText(resp)
		if chunk == "" {
			continue
		}
		sb.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	return sb.String(), nil
}

func roleOf(role string) genai.Role {
	switch role {
	case "assistant", "model":
		return genai.RoleModel
	default:
		return genai.RoleUser
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}
