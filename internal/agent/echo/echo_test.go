package echo

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/gold-agents/backend/internal/agent"
)

var timestampPrefix = regexp.MustCompile(`^\[([01]\d|2[0-3]):[0-5]\d:[0-5]\d\] `)

type recordingThread struct {
	mu       sync.Mutex
	messages []*schema.Message
	appended chan struct{}
	err      error
}

func newRecordingThread() *recordingThread {
	return &recordingThread{appended: make(chan struct{}, 8)}
}

func (r *recordingThread) Append(_ context.Context, msgs ...*schema.Message) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	r.messages = append(r.messages, msgs...)
	r.mu.Unlock()
	r.appended <- struct{}{}
	return nil
}

func (r *recordingThread) Messages(context.Context) ([]*schema.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*schema.Message(nil), r.messages...), nil
}

func (r *recordingThread) snapshot() []*schema.Message {
	msgs, _ := r.Messages(context.Background())
	return msgs
}

func fixedClock() time.Time {
	return time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC)
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestAgent() *Agent {
	return New(WithClock(fixedClock), WithSleep(noSleep))
}

func drain(t *testing.T, sr *schema.StreamReader[*schema.Message]) []string {
	t.Helper()
	defer sr.Close()

	var out []string
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Recv err: %v", err)
		}
		if chunk.Role != schema.Assistant {
			t.Fatalf("expected assistant fragment, got %s", chunk.Role)
		}
		out = append(out, chunk.Content)
	}
}

func TestRunEchoesLastMessage(t *testing.T) {
	resp, err := newTestAgent().Run(context.Background(), agent.TextsInput("ping"), nil)
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if len(resp.Messages) != 1 {
		t.Fatalf("expected one message, got %d", len(resp.Messages))
	}
	if resp.Messages[0].Role != schema.Assistant {
		t.Fatalf("expected assistant role, got %s", resp.Messages[0].Role)
	}
	if got := resp.Text(); got != "[10:00:00] 🔊 Echo: ping" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestRunUsesLatestMessageOnly(t *testing.T) {
	input := agent.MessagesInput(
		schema.UserMessage("first"),
		schema.AssistantMessage("middle", nil),
		schema.UserMessage("last one"),
	)
	resp, err := New().Run(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}

	text := resp.Text()
	if !timestampPrefix.MatchString(text) {
		t.Fatalf("missing timestamp prefix in %q", text)
	}
	if !strings.HasSuffix(text, "Echo: last one") {
		t.Fatalf("expected last message echoed, got %q", text)
	}
}

func TestRunEmptyInputReportsReady(t *testing.T) {
	for name, input := range map[string]agent.Input{
		"none":  agent.NoInput(),
		"empty": agent.MessagesInput(),
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := newTestAgent().Run(context.Background(), input, nil)
			if err != nil {
				t.Fatalf("Run err: %v", err)
			}
			if !strings.Contains(resp.Text(), "Send a message to test.") {
				t.Fatalf("unexpected ready text %q", resp.Text())
			}
			if !strings.HasPrefix(resp.Text(), "[10:00:00] 🟢") {
				t.Fatalf("unexpected prefix %q", resp.Text())
			}
		})
	}
}

func TestRunPlaceholderWhenLastMessageHasNoText(t *testing.T) {
	resp, err := newTestAgent().Run(context.Background(), agent.MessageInput(&schema.Message{Role: schema.User}), nil)
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if got := resp.Text(); got != "[10:00:00] 🔊 Echo: [no text]" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestRunAppendsInputAndReplyToThread(t *testing.T) {
	thread := newRecordingThread()
	input := agent.TextsInput("a", "b")

	resp, err := newTestAgent().Run(context.Background(), input, thread)
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}

	got := thread.snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 thread messages, got %d", len(got))
	}
	if got[0].Content != "a" || got[1].Content != "b" {
		t.Fatalf("input messages out of order: %q %q", got[0].Content, got[1].Content)
	}
	if got[2].Role != schema.Assistant || got[2].Content != resp.Text() {
		t.Fatalf("unexpected recorded reply %+v", got[2])
	}
}

func TestRunReturnsThreadError(t *testing.T) {
	thread := newRecordingThread()
	thread.err = errors.New("boom")

	if _, err := newTestAgent().Run(context.Background(), agent.TextInput("x"), thread); !errors.Is(err, thread.err) {
		t.Fatalf("expected wrapped thread error, got %v", err)
	}
}

func TestRunStreamFragments(t *testing.T) {
	sr, err := newTestAgent().RunStream(context.Background(), agent.TextsInput("ping"), nil)
	if err != nil {
		t.Fatalf("RunStream err: %v", err)
	}

	got := drain(t, sr)
	want := []string{"[10:00:00]", " 🔊", " Echo:", " ping"}
	if len(got) != len(want) {
		t.Fatalf("expected %d fragments, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fragment %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestRunStreamMatchesRun(t *testing.T) {
	a := newTestAgent()
	for _, text := range []string{"hello world", "spaced   out\ttext ", "", "single"} {
		input := agent.TextInput(text)

		resp, err := a.Run(context.Background(), input, nil)
		if err != nil {
			t.Fatalf("Run err: %v", err)
		}
		sr, err := a.RunStream(context.Background(), input, nil)
		if err != nil {
			t.Fatalf("RunStream err: %v", err)
		}

		if joined := strings.Join(drain(t, sr), ""); joined != resp.Text() {
			t.Fatalf("stream %q does not rebuild %q", joined, resp.Text())
		}
	}
}

func TestRunStreamRecordsCompleteReplyOnce(t *testing.T) {
	thread := newRecordingThread()
	sr, err := newTestAgent().RunStream(context.Background(), agent.TextInput("ping"), thread)
	if err != nil {
		t.Fatalf("RunStream err: %v", err)
	}
	drain(t, sr)

	got := thread.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected input + one reply, got %d messages", len(got))
	}
	if got[1].Role != schema.Assistant || got[1].Content != "[10:00:00] 🔊 Echo: ping" {
		t.Fatalf("unexpected recorded reply %+v", got[1])
	}
}

func TestRunStreamAbandonedLeavesThreadUntouched(t *testing.T) {
	thread := newRecordingThread()
	sr, err := newTestAgent().RunStream(context.Background(), agent.TextInput("ping"), thread)
	if err != nil {
		t.Fatalf("RunStream err: %v", err)
	}

	if _, err := sr.Recv(); err != nil {
		t.Fatalf("Recv err: %v", err)
	}
	sr.Close()

	select {
	case <-thread.appended:
		t.Fatal("thread updated after consumer stopped")
	case <-time.After(50 * time.Millisecond):
	}
	if len(thread.snapshot()) != 0 {
		t.Fatal("expected empty thread")
	}
}

func TestRunStreamCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	thread := newRecordingThread()
	sr, err := New(WithClock(fixedClock), WithDelay(time.Hour)).RunStream(ctx, agent.TextInput("ping"), thread)
	if err != nil {
		t.Fatalf("RunStream err: %v", err)
	}
	defer sr.Close()

	if _, err := sr.Recv(); err != nil {
		t.Fatalf("Recv err: %v", err)
	}
	cancel()

	if _, err := sr.Recv(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(thread.snapshot()) != 0 {
		t.Fatal("expected empty thread after cancellation")
	}
}

func TestRunStreamPacesBetweenFragments(t *testing.T) {
	var (
		mu     sync.Mutex
		delays []time.Duration
	)
	sleep := func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return nil
	}

	sr, err := New(WithClock(fixedClock), WithDelay(7*time.Millisecond), WithSleep(sleep)).
		RunStream(context.Background(), agent.TextInput("ping"), nil)
	if err != nil {
		t.Fatalf("RunStream err: %v", err)
	}
	fragments := drain(t, sr)

	mu.Lock()
	defer mu.Unlock()
	if len(delays) != len(fragments)-1 {
		t.Fatalf("expected %d pauses, got %d", len(fragments)-1, len(delays))
	}
	for _, d := range delays {
		if d != 7*time.Millisecond {
			t.Fatalf("unexpected delay %s", d)
		}
	}
}

func TestFragments(t *testing.T) {
	cases := map[string][]string{
		"a b":      {"a", " b"},
		"  a b":    {"  a", " b"},
		"a  b\t":   {"a", "  b\t"},
		"solo":     {"solo"},
		"":         nil,
		"x\ny z":   {"x", "\ny", " z"},
		"🟢 ready.": {"🟢", " ready."},
	}
	for text, want := range cases {
		got := Fragments(text)
		if len(got) != len(want) {
			t.Fatalf("%q: expected %q, got %q", text, want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%q: fragment %d expected %q, got %q", text, i, want[i], got[i])
			}
		}
	}
}

func TestDefaults(t *testing.T) {
	a := New()
	if a.Name() != DefaultName || a.Description() != DefaultDescription {
		t.Fatalf("unexpected defaults %s / %s", a.Name(), a.Description())
	}
	custom := New(WithName("Canary"), WithDescription("desc"))
	if custom.Name() != "Canary" || custom.Description() != "desc" {
		t.Fatal("options not applied")
	}
}
