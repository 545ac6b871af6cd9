package agent

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	agentpkg "github.com/zhouzirui/gold-agents/backend/internal/agent"
	"github.com/zhouzirui/gold-agents/backend/internal/handler/stream"
	"github.com/zhouzirui/gold-agents/backend/internal/metrics"
	chatService "github.com/zhouzirui/gold-agents/backend/internal/service/chat"
	"github.com/zhouzirui/gold-agents/backend/pkg/utils"
)

// Handler serves the hosted agents over HTTP.
type Handler struct {
	agents  *agentpkg.Registry
	chatSvc *chatService.Service
	streams *stream.Handler
}

// New creates the agent handler.
func New(agents *agentpkg.Registry, chatSvc *chatService.Service, streams *stream.Handler) *Handler {
	return &Handler{
		agents:  agents,
		chatSvc: chatSvc,
		streams: streams,
	}
}

// RegisterRoutes mounts the agent routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/agents", h.handleListAgents)
	r.Post("/agents/{name}/runs", h.handleRun)
	r.Get("/agents/{name}/ws", h.handleWebSocket)
}

// Summary is the public view of a hosted agent.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type runRequest struct {
	Input          agentpkg.Input `json:"input"`
	ConversationID string         `json:"conversationId"`
	Stream         bool           `json:"stream"`
}

// RunResponse is returned by non-streaming runs.
type RunResponse struct {
	Agent          string            `json:"agent"`
	ConversationID string            `json:"conversationId,omitempty"`
	Messages       []*schema.Message `json:"messages"`
	Text           string            `json:"text"`
}

// handleListAgents lists every hosted agent.
func (h *Handler) handleListAgents(w http.ResponseWriter, r *http.Request) {
	list := h.agents.List()
	out := make([]Summary, 0, len(list))
	for _, a := range list {
		out = append(out, Summary{Name: a.Name(), Description: a.Description()})
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

// handleRun runs an agent once, streaming over SSE when asked to.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	a, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload runRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	thread, err := h.chatSvc.ThreadFor(r.Context(), payload.ConversationID, a.Name())
	if err != nil {
		utils.RespondError(w, threadErrorStatus(err), err.Error())
		return
	}

	if payload.Stream || strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.streams.HandleSSE(w, r, a, payload.Input, payload.ConversationID, thread)
		return
	}

	metrics.IncRun(a.Name(), metrics.ModeSync)
	resp, err := a.Run(r.Context(), payload.Input, thread)
	if err != nil {
		metrics.IncError(a.Name())
		log.Printf("[agent] run failed agent=%s conversation=%s: %v", a.Name(), payload.ConversationID, err)
		utils.RespondError(w, runErrorStatus(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, RunResponse{
		Agent:          a.Name(),
		ConversationID: payload.ConversationID,
		Messages:       resp.Messages,
		Text:           resp.Text(),
	})
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	a, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.streams.HandleWebSocket(w, r, a)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (agentpkg.Agent, bool) {
	name := chi.URLParam(r, "name")
	a, ok := h.agents.Find(name)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, agentpkg.ErrAgentNotFound.Error())
		return nil, false
	}
	return a, true
}

func threadErrorStatus(err error) int {
	switch {
	case errors.Is(err, chatService.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrAgentMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func runErrorStatus(err error) int {
	if errors.Is(err, agentpkg.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
