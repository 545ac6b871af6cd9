package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/gold-agents/backend/internal/agent"
	chatService "github.com/zhouzirui/gold-agents/backend/internal/service/chat"
	"github.com/zhouzirui/gold-agents/backend/pkg/utils"
)

// Handler 会话服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	agents  *agent.Registry
}

// New 创建会话处理器
func New(chatSvc *chatService.Service, agents *agent.Registry) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		agents:  agents,
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/conversations", h.handleCreateConversation)
	r.Get("/conversations/{conversationID}/messages", h.handleListMessages)
}

// handleCreateConversation 创建会话
func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Agent string `json:"agent"`
	}

	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Agent == "" {
		utils.RespondError(w, http.StatusBadRequest, "agent is required")
		return
	}

	if _, ok := h.agents.Find(payload.Agent); !ok {
		utils.RespondError(w, http.StatusBadRequest, agent.ErrAgentNotFound.Error())
		return
	}

	conv, err := h.chatSvc.CreateConversation(r.Context(), payload.Agent)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, conv)
}

// handleListMessages 返回会话记录
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	transcript, err := h.chatSvc.LoadTranscript(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcript)
}
