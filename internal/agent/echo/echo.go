// Package echo implements the canary agent that reflects the latest user
// message back with a timestamp prefix. It never calls a model.
package echo

import (
	"context"
	"fmt"
	"time"
	"unicode"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/gold-agents/backend/internal/agent"
)

const (
	DefaultName        = "GoldEchoAgent"
	DefaultDescription = "GOLD Demo canary echo agent for stability testing"
	DefaultDelay       = 50 * time.Millisecond

	timestampLayout = "15:04:05"
	noTextLabel     = "[no text]"
)

// Agent is the echo responder. It holds configuration only; every call is
// independent.
type Agent struct {
	name        string
	description string
	now         func() time.Time
	delay       time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option customizes an Agent.
type Option func(*Agent)

// WithName overrides the agent name.
func WithName(name string) Option {
	return func(a *Agent) {
		if name != "" {
			a.name = name
		}
	}
}

// WithDescription overrides the agent description.
func WithDescription(description string) Option {
	return func(a *Agent) {
		if description != "" {
			a.description = description
		}
	}
}

// WithClock replaces the wall clock used for the timestamp prefix.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// WithDelay sets the pause between streamed fragments. Zero disables pacing.
func WithDelay(d time.Duration) Option {
	return func(a *Agent) {
		if d >= 0 {
			a.delay = d
		}
	}
}

// WithSleep replaces the pacing function. It must return ctx.Err() once ctx
// is done.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Agent) {
		if sleep != nil {
			a.sleep = sleep
		}
	}
}

// New creates an echo agent.
func New(opts ...Option) *Agent {
	a := &Agent{
		name:        DefaultName,
		description: DefaultDescription,
		now:         time.Now,
		delay:       DefaultDelay,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Name() string        { return a.name }
func (a *Agent) Description() string { return a.description }

// Run echoes the last input message. When thread is non-nil the input messages
// and the reply are appended to it before returning.
func (a *Agent) Run(ctx context.Context, input agent.Input, thread agent.Thread) (*agent.Response, error) {
	messages := input.Messages()
	reply := schema.AssistantMessage(ResponseText(messages, a.now()), nil)

	if thread != nil {
		if err := thread.Append(ctx, append(messages, reply)...); err != nil {
			return nil, fmt.Errorf("failed to record echo on thread: %w", err)
		}
	}

	return &agent.Response{Messages: []*schema.Message{reply}}, nil
}

// RunStream emits the same reply as Run one word at a time, pausing between
// words. The thread only receives the complete reply, and only after the last
// fragment was accepted by the consumer; closing the reader early or cancelling
// ctx leaves the thread untouched.
func (a *Agent) RunStream(ctx context.Context, input agent.Input, thread agent.Thread) (*schema.StreamReader[*schema.Message], error) {
	messages := input.Messages()
	text := ResponseText(messages, a.now())
	fragments := Fragments(text)

	sr, sw := schema.Pipe[*schema.Message](0)
	go func() {
		defer sw.Close()

		for i, fragment := range fragments {
			if i > 0 {
				if err := a.sleep(ctx, a.delay); err != nil {
					sw.Send(nil, err)
					return
				}
			}
			if closed := sw.Send(schema.AssistantMessage(fragment, nil), nil); closed {
				return
			}
		}

		if thread == nil {
			return
		}
		reply := schema.AssistantMessage(text, nil)
		if err := thread.Append(ctx, append(messages, reply)...); err != nil {
			sw.Send(nil, fmt.Errorf("failed to record echo on thread: %w", err))
		}
	}()

	return sr, nil
}

// ResponseText builds the echo reply for messages at time now (rendered in UTC).
func ResponseText(messages []*schema.Message, now time.Time) string {
	timestamp := now.UTC().Format(timestampLayout)
	if len(messages) == 0 {
		return fmt.Sprintf("[%s] 🟢 GOLD Echo Agent ready. Send a message to test.", timestamp)
	}

	text := agent.MessageText(messages[len(messages)-1])
	if text == "" {
		text = noTextLabel
	}
	return fmt.Sprintf("[%s] 🔊 Echo: %s", timestamp, text)
}

// Fragments splits text into whitespace-delimited words. Every fragment after
// the first keeps the whitespace that preceded its word, and trailing
// whitespace stays on the last fragment, so joining the fragments gives text
// back unchanged.
func Fragments(text string) []string {
	var (
		fragments []string
		start     int
		cut       = -1
		inWord    bool
	)

	for i, r := range text {
		space := unicode.IsSpace(r)
		switch {
		case space && inWord:
			cut = i
			inWord = false
		case !space && !inWord:
			if cut >= 0 {
				fragments = append(fragments, text[start:cut])
				start = cut
				cut = -1
			}
			inWord = true
		}
	}

	if start < len(text) {
		fragments = append(fragments, text[start:])
	}
	return fragments
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
