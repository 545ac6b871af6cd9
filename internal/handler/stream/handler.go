package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/gold-agents/backend/internal/agent"
	"github.com/zhouzirui/gold-agents/backend/internal/metrics"
	chatService "github.com/zhouzirui/gold-agents/backend/internal/service/chat"
	"github.com/zhouzirui/gold-agents/backend/pkg/utils"
)

// Event names shared by the SSE and WebSocket surfaces.
const (
	EventStart   = "start"
	EventDelta   = "delta"
	EventMessage = "message"
	EventEnd     = "end"
	EventError   = "error"
)

// Handler relays agent streams to HTTP clients.
type Handler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// StreamResponse represents a streaming response chunk. ToolCalls is only set
// on the message event, for replies in which the agent called tools.
type StreamResponse struct {
	Event          string            `json:"event"`
	Agent          string            `json:"agent,omitempty"`
	ConversationID string            `json:"conversationId,omitempty"`
	Content        string            `json:"content,omitempty"`
	ToolCalls      []schema.ToolCall `json:"toolCalls,omitempty"`
	Finished       bool              `json:"finished,omitempty"`
	Error          string            `json:"error,omitempty"`
}

type emitFunc func(StreamResponse) error

// HandleSSE streams one agent run as Server-Sent Events.
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request, a agent.Agent, input agent.Input, conversationID string, thread agent.Thread) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	metrics.IncRun(a.Name(), metrics.ModeSSE)

	emit := func(resp StreamResponse) error {
		return utils.SendSSEEvent(w, flusher, resp.Event, resp)
	}

	if err := h.relay(r.Context(), a, input, conversationID, thread, emit); err != nil {
		metrics.IncError(a.Name())
		log.Printf("[stream] agent=%s conversation=%s failed: %v", a.Name(), conversationID, err)
		_ = emit(StreamResponse{
			Event:          EventError,
			Agent:          a.Name(),
			ConversationID: conversationID,
			Error:          err.Error(),
		})
	}
}

// relay pulls every chunk from the agent stream and forwards it through emit.
// Returning early closes the agent stream, which stops the agent from
// producing more output and from recording a partial reply.
func (h *Handler) relay(ctx context.Context, a agent.Agent, input agent.Input, conversationID string, thread agent.Thread, emit emitFunc) error {
	sr, err := a.RunStream(ctx, input, thread)
	if err != nil {
		return err
	}
	defer sr.Close()

	if err := emit(StreamResponse{Event: EventStart, Agent: a.Name(), ConversationID: conversationID}); err != nil {
		return err
	}

	chunks := make([]*schema.Message, 0, 16)
	for {
		chunk, recvErr := sr.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content == "" {
			continue
		}
		if err := emit(StreamResponse{
			Event:          EventDelta,
			Agent:          a.Name(),
			ConversationID: conversationID,
			Content:        chunk.Content,
		}); err != nil {
			return err
		}
		metrics.IncFragment(a.Name())
	}

	message := StreamResponse{Event: EventMessage, Agent: a.Name(), ConversationID: conversationID}
	if len(chunks) > 0 {
		full, err := schema.ConcatMessages(chunks)
		if err != nil {
			return fmt.Errorf("failed to concat stream chunks: %w", err)
		}
		message.Content = full.Content
		message.ToolCalls = full.ToolCalls
	}

	if err := emit(message); err != nil {
		return err
	}
	if err := emit(StreamResponse{Event: EventEnd, Agent: a.Name(), ConversationID: conversationID, Finished: true}); err != nil {
		return err
	}

	log.Printf("[stream] completed agent=%s conversation=%s fragments=%d", a.Name(), conversationID, len(chunks))
	return nil
}
