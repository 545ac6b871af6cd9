// Package scheduler hosts the maintenance scheduling agent. All window
// selection happens in the model; this package wires the prompt, the document
// tool and the conversation thread around it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/gold-agents/backend/internal/agent"
)

// DefaultMaxToolRounds bounds how many model turns one run may spend on tool
// calls before giving up.
const DefaultMaxToolRounds = 8

// ErrToolRoundsExceeded is returned when the model keeps calling tools past
// the configured limit.
var ErrToolRoundsExceeded = errors.New("tool call rounds exceeded")

// errConsumerGone stops the tool loop once the stream reader was closed.
var errConsumerGone = errors.New("stream consumer closed")

// Config describes the hosted agent.
type Config struct {
	Name             string
	Description      string
	Instructions     string
	ProjectEndpoint  string
	ToolConnectionID string
	Documents        DocumentSource
	MaxToolRounds    int
}

// Agent runs a fixed system prompt against a hosted chat model and executes
// the document tool calls the model makes.
type Agent struct {
	name         string
	description  string
	instructions string
	tools        []*schema.ToolInfo
	template     *prompt.DefaultChatTemplate
	model        model.ChatModel
	toolsNode    *compose.ToolsNode
	maxRounds    int
}

type stepFunc func(ctx context.Context, conversation []*schema.Message) (*schema.Message, error)

// New binds the configured tools to chatModel and prepares the prompt.
func New(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Agent, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if cfg.Name == "" {
		return nil, errors.New("agent name is required")
	}
	if cfg.Instructions == "" {
		return nil, fmt.Errorf("agent %s has no instructions", cfg.Name)
	}

	a := &Agent{
		name:         cfg.Name,
		description:  cfg.Description,
		instructions: cfg.Instructions,
		model:        chatModel,
		maxRounds:    cfg.MaxToolRounds,
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{instructions}"),
			schema.MessagesPlaceholder("history", true),
			schema.MessagesPlaceholder("input", false),
		),
	}
	if a.maxRounds <= 0 {
		a.maxRounds = DefaultMaxToolRounds
	}

	a.tools = Tools(cfg)
	if len(a.tools) > 0 {
		if err := chatModel.BindTools(a.tools); err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
		toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
			Tools: []tool.BaseTool{newDocumentTool(cfg)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build tools node: %w", err)
		}
		a.toolsNode = toolsNode
	}

	log.Printf("[scheduler] agent %s ready, tools=%d", cfg.Name, len(a.tools))
	return a, nil
}

func (a *Agent) Name() string        { return a.name }
func (a *Agent) Description() string { return a.description }

// Tools returns the tool declarations bound to the model.
func (a *Agent) Tools() []*schema.ToolInfo {
	return append([]*schema.ToolInfo(nil), a.tools...)
}

// Run converses with the model until it answers without tool calls. The
// response holds every produced message: tool-call turns, tool results and
// the final answer, which is also what gets appended to the thread after the
// input.
func (a *Agent) Run(ctx context.Context, input agent.Input, thread agent.Thread) (*agent.Response, error) {
	messages := input.Messages()
	conversation, err := a.prompt(ctx, messages, thread)
	if err != nil {
		return nil, err
	}

	produced, err := a.converse(ctx, conversation, a.generate)
	if err != nil {
		return nil, err
	}

	if thread != nil {
		if err := thread.Append(ctx, append(messages, produced...)...); err != nil {
			return nil, fmt.Errorf("failed to record reply on thread: %w", err)
		}
	}

	final := produced[len(produced)-1]
	log.Printf("[scheduler] generated reply, length=%d, messages=%d", len(final.Content), len(produced))
	return &agent.Response{Messages: produced}, nil
}

// RunStream relays model text as it arrives. A tool-call turn is forwarded as
// one assistant chunk carrying the calls once the turn is complete, then the
// tools run and the model is asked again. Everything is recorded on the thread
// only once the final answer has been fully consumed.
func (a *Agent) RunStream(ctx context.Context, input agent.Input, thread agent.Thread) (*schema.StreamReader[*schema.Message], error) {
	messages := input.Messages()
	conversation, err := a.prompt(ctx, messages, thread)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](0)
	go func() {
		defer sw.Close()

		step := func(ctx context.Context, conv []*schema.Message) (*schema.Message, error) {
			return a.streamStep(ctx, conv, sw)
		}
		produced, err := a.converse(ctx, conversation, step)
		if errors.Is(err, errConsumerGone) {
			return
		}
		if err != nil {
			sw.Send(nil, err)
			return
		}

		if thread == nil {
			return
		}
		if err := thread.Append(ctx, append(messages, produced...)...); err != nil {
			sw.Send(nil, fmt.Errorf("failed to record reply on thread: %w", err))
		}
	}()

	return sr, nil
}

func (a *Agent) generate(ctx context.Context, conversation []*schema.Message) (*schema.Message, error) {
	reply, err := a.model.Generate(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to generate scheduler reply: %w", err)
	}
	return reply, nil
}

func (a *Agent) streamStep(ctx context.Context, conversation []*schema.Message, sw *schema.StreamWriter[*schema.Message]) (*schema.Message, error) {
	stream, err := a.model.Stream(ctx, conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to stream scheduler reply: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 16)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content == "" {
			continue
		}
		if closed := sw.Send(schema.AssistantMessage(chunk.Content, nil), nil); closed {
			return nil, errConsumerGone
		}
	}

	if len(chunks) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	reply, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to concat reply chunks: %w", err)
	}

	if len(reply.ToolCalls) > 0 {
		if closed := sw.Send(schema.AssistantMessage("", detachedCalls(reply.ToolCalls)), nil); closed {
			return nil, errConsumerGone
		}
	}
	return reply, nil
}

// converse calls step until a reply carries no tool calls, running the tools
// in between. It returns every produced message with the final answer last.
func (a *Agent) converse(ctx context.Context, conversation []*schema.Message, step stepFunc) ([]*schema.Message, error) {
	var produced []*schema.Message
	for round := 0; round < a.maxRounds; round++ {
		reply, err := step(ctx, conversation)
		if err != nil {
			return nil, err
		}
		produced = append(produced, reply)

		if len(reply.ToolCalls) == 0 || a.toolsNode == nil {
			return produced, nil
		}

		results, err := a.toolsNode.Invoke(ctx, reply)
		if err != nil {
			return nil, fmt.Errorf("failed to run tool calls: %w", err)
		}
		produced = append(produced, results...)
		conversation = append(conversation, reply)
		conversation = append(conversation, results...)
	}
	return nil, fmt.Errorf("%w: limit %d", ErrToolRoundsExceeded, a.maxRounds)
}

func (a *Agent) prompt(ctx context.Context, messages []*schema.Message, thread agent.Thread) ([]*schema.Message, error) {
	var history []*schema.Message
	if thread != nil {
		prior, err := thread.Messages(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load thread history: %w", err)
		}
		history = prior
	}

	if messages == nil {
		messages = []*schema.Message{}
	}
	conversation, err := a.template.Format(ctx, map[string]any{
		"instructions": a.instructions,
		"history":      history,
		"input":        messages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render scheduler prompt: %w", err)
	}
	return conversation, nil
}

// detachedCalls drops the streaming index so calls from different turns are
// never merged when a consumer concatenates the chunks.
func detachedCalls(calls []schema.ToolCall) []schema.ToolCall {
	out := make([]schema.ToolCall, len(calls))
	for i, call := range calls {
		call.Index = nil
		out[i] = call
	}
	return out
}
