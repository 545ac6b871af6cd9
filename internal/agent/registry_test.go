package agent_test

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/gold-agents/backend/internal/agent"
)

type stubAgent struct{ name string }

func (s stubAgent) Name() string        { return s.name }
func (s stubAgent) Description() string { return "stub" }

func (s stubAgent) Run(context.Context, agent.Input, agent.Thread) (*agent.Response, error) {
	return &agent.Response{Messages: []*schema.Message{schema.AssistantMessage("ok", nil)}}, nil
}

func (s stubAgent) RunStream(context.Context, agent.Input, agent.Thread) (*schema.StreamReader[*schema.Message], error) {
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage("ok", nil)}), nil
}

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	reg, err := agent.NewRegistry(stubAgent{name: "b"}, stubAgent{name: "a"})
	if err != nil {
		t.Fatalf("NewRegistry err: %v", err)
	}

	list := reg.List()
	if len(list) != 2 || list[0].Name() != "b" || list[1].Name() != "a" {
		t.Fatalf("unexpected order: %v", list)
	}

	if _, ok := reg.Find("a"); !ok {
		t.Fatal("expected to find agent a")
	}
	if _, ok := reg.Find("missing"); ok {
		t.Fatal("unexpected agent for missing name")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := agent.NewRegistry(stubAgent{name: "a"}, stubAgent{name: "a"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
	if _, err := agent.NewRegistry(stubAgent{}); err == nil {
		t.Fatal("expected empty name error")
	}
}

func TestResponseText(t *testing.T) {
	resp := &agent.Response{Messages: []*schema.Message{
		schema.AssistantMessage("a", nil),
		schema.ToolMessage(`[{"id":"MW-1"}]`, "call-1"),
		schema.AssistantMessage("b", nil),
	}}
	if resp.Text() != "ab" {
		t.Fatalf("unexpected text %q", resp.Text())
	}
	var nilResp *agent.Response
	if nilResp.Text() != "" {
		t.Fatal("nil response should have empty text")
	}
}
