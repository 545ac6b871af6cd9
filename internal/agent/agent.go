package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// ErrInvalidInput is wrapped by agents that cannot act on the input they were
// given.
var ErrInvalidInput = errors.New("invalid input")

// Agent maps conversational input to conversational output.
//
// Run produces the complete reply. RunStream produces the same reply as a lazy
// sequence of assistant chunks; the caller must Close the returned reader, and
// closing it early stops production.
type Agent interface {
	Name() string
	Description() string
	Run(ctx context.Context, input Input, thread Thread) (*Response, error)
	RunStream(ctx context.Context, input Input, thread Thread) (*schema.StreamReader[*schema.Message], error)
}

// Thread is an append-only conversation log owned by the caller.
// Agents never lock it; implementations shared across goroutines must.
type Thread interface {
	Append(ctx context.Context, messages ...*schema.Message) error
	Messages(ctx context.Context) ([]*schema.Message, error)
}

// Response is the result of a synchronous run.
type Response struct {
	Messages []*schema.Message `json:"messages"`
}

// Text joins the text of the assistant messages in the response. Tool results
// are part of Messages but not of the reply text.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, msg := range r.Messages {
		if msg == nil || msg.Role == schema.Tool {
			continue
		}
		b.WriteString(MessageText(msg))
	}
	return b.String()
}

// MessageText returns the text carried by msg. Content wins; otherwise the text
// parts of MultiContent are concatenated. A nil message has no text.
func MessageText(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Content != "" {
		return msg.Content
	}
	var b strings.Builder
	for _, part := range msg.MultiContent {
		if part.Type == schema.ChatMessagePartTypeText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
