package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

type inputKind int

const (
	inputNone inputKind = iota
	inputText
	inputMessage
	inputTexts
	inputMessages
)

// Input is the set of shapes a caller may hand to an agent: nothing, a bare
// string, one message, several strings or several messages. Messages resolves
// any of them to the canonical ordered slice.
//
// The zero value is the empty input.
type Input struct {
	kind     inputKind
	texts    []string
	messages []*schema.Message
}

// NoInput is an absent input.
func NoInput() Input { return Input{} }

// TextInput wraps a bare string; it becomes a single user message.
func TextInput(text string) Input {
	return Input{kind: inputText, texts: []string{text}}
}

// MessageInput wraps a single message.
func MessageInput(msg *schema.Message) Input {
	if msg == nil {
		return Input{}
	}
	return Input{kind: inputMessage, messages: []*schema.Message{msg}}
}

// TextsInput wraps a list of bare strings; each becomes a user message.
func TextsInput(texts ...string) Input {
	return Input{kind: inputTexts, texts: append([]string(nil), texts...)}
}

// MessagesInput wraps a list of messages. Nil entries are dropped.
func MessagesInput(msgs ...*schema.Message) Input {
	kept := make([]*schema.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg != nil {
			kept = append(kept, msg)
		}
	}
	return Input{kind: inputMessages, messages: kept}
}

// IsEmpty reports whether the input resolves to no messages.
func (in Input) IsEmpty() bool {
	return len(in.texts) == 0 && len(in.messages) == 0
}

// Messages returns the input as an ordered message slice. The slice is fresh on
// every call; the messages themselves are shared and must not be mutated.
func (in Input) Messages() []*schema.Message {
	switch in.kind {
	case inputText, inputTexts:
		out := make([]*schema.Message, 0, len(in.texts))
		for _, text := range in.texts {
			out = append(out, schema.UserMessage(text))
		}
		return out
	case inputMessage, inputMessages:
		return append([]*schema.Message(nil), in.messages...)
	default:
		return nil
	}
}

var errInvalidInput = errors.New("input must be null, a string, a message or an array of them")

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (w wireMessage) toSchema() (*schema.Message, error) {
	switch strings.ToLower(strings.TrimSpace(w.Role)) {
	case "", string(schema.User):
		return schema.UserMessage(w.Content), nil
	case string(schema.Assistant):
		return schema.AssistantMessage(w.Content, nil), nil
	case string(schema.System):
		return schema.SystemMessage(w.Content), nil
	default:
		return nil, fmt.Errorf("unsupported role %q", w.Role)
	}
}

// UnmarshalJSON decodes null, "text", {"role","content"} or an array mixing
// strings and message objects.
func (in *Input) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*in = NoInput()
		return nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*in = TextInput(text)
		return nil
	case '{':
		var wire wireMessage
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return err
		}
		msg, err := wire.toSchema()
		if err != nil {
			return err
		}
		*in = MessageInput(msg)
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		return in.decodeArray(items)
	default:
		return errInvalidInput
	}
}

func (in *Input) decodeArray(items []json.RawMessage) error {
	msgs := make([]*schema.Message, 0, len(items))
	allText := true
	for i, raw := range items {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			return fmt.Errorf("input[%d]: %w", i, errInvalidInput)
		}
		switch raw[0] {
		case '"':
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return fmt.Errorf("input[%d]: %w", i, err)
			}
			msgs = append(msgs, schema.UserMessage(text))
		case '{':
			allText = false
			var wire wireMessage
			if err := json.Unmarshal(raw, &wire); err != nil {
				return fmt.Errorf("input[%d]: %w", i, err)
			}
			msg, err := wire.toSchema()
			if err != nil {
				return fmt.Errorf("input[%d]: %w", i, err)
			}
			msgs = append(msgs, msg)
		default:
			return fmt.Errorf("input[%d]: %w", i, errInvalidInput)
		}
	}

	if allText {
		texts := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			texts = append(texts, msg.Content)
		}
		*in = TextsInput(texts...)
		return nil
	}
	*in = MessagesInput(msgs...)
	return nil
}
