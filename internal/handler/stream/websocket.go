package stream

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/gold-agents/backend/internal/agent"
	"github.com/zhouzirui/gold-agents/backend/internal/metrics"
	chatService "github.com/zhouzirui/gold-agents/backend/internal/service/chat"
)

// inboundMessage is one run request sent by a WebSocket client.
type inboundMessage struct {
	Input          agent.Input `json:"input"`
	ConversationID string      `json:"conversationId"`
}

// HandleWebSocket upgrades the request and serves one run per inbound message
// until the client goes away. Runs on a connection are sequential.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request, a agent.Agent) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for agent=%s", a.Name())
	ctx := r.Context()

	emit := func(resp StreamResponse) error {
		return conn.WriteJSON(resp)
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] connection closed for agent=%s", a.Name())
			} else {
				log.Printf("[ws] read failed for agent=%s: %v", a.Name(), err)
			}
			return
		}

		// a malformed frame gets an error event; the connection stays open
		var msg inboundMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			log.Printf("[ws] invalid message for agent=%s: %v", a.Name(), err)
			if writeErr := emit(StreamResponse{Event: EventError, Agent: a.Name(), Error: "invalid message: " + err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		thread, err := h.resolveThread(r, msg.ConversationID, a.Name())
		if err != nil {
			if writeErr := emit(StreamResponse{Event: EventError, Agent: a.Name(), ConversationID: msg.ConversationID, Error: err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		metrics.IncRun(a.Name(), metrics.ModeSocket)
		if err := h.relay(ctx, a, msg.Input, msg.ConversationID, thread, emit); err != nil {
			metrics.IncError(a.Name())
			log.Printf("[ws] agent=%s conversation=%s failed: %v", a.Name(), msg.ConversationID, err)
			if writeErr := emit(StreamResponse{Event: EventError, Agent: a.Name(), ConversationID: msg.ConversationID, Error: err.Error()}); writeErr != nil {
				return
			}
		}
	}
}

func (h *Handler) resolveThread(r *http.Request, conversationID, agentName string) (agent.Thread, error) {
	if h.chatSvc == nil {
		if conversationID != "" {
			return nil, chatService.ErrConversationNotFound
		}
		return nil, nil
	}
	return h.chatSvc.ThreadFor(r.Context(), conversationID, agentName)
}
