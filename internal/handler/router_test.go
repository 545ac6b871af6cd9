package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zhouzirui/gold-agents/backend/internal/agent"
	"github.com/zhouzirui/gold-agents/backend/internal/agent/echo"
	chatService "github.com/zhouzirui/gold-agents/backend/internal/service/chat"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	registry, err := agent.NewRegistry(echo.New(echo.WithDelay(0)))
	if err != nil {
		t.Fatalf("NewRegistry err: %v", err)
	}
	return NewRouter(registry, chatService.NewService(), "/metrics")
}

func TestRouterHealthz(t *testing.T) {
	r := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestRouterConversationRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/conversations", bytes.NewReader([]byte(`{"agent":"GoldEchoAgent"}`))))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var conv struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &conv)

	body := `{"input":"ping","conversationId":"` + conv.ID + `"}`
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/agents/GoldEchoAgent/runs", bytes.NewReader([]byte(body))))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/conversations/"+conv.ID+"/messages", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "Echo: ping") {
		t.Fatalf("unexpected transcript %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRouterMetrics(t *testing.T) {
	r := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/agents/GoldEchoAgent/runs", bytes.NewReader([]byte(`{"input":"ping"}`))))

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `agent_runs_total{agent="GoldEchoAgent",mode="sync"}`) {
		t.Fatalf("run counter missing from metrics output")
	}
}
