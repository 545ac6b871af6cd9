package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/gold-agents/backend/internal/agent"
	agentHandler "github.com/zhouzirui/gold-agents/backend/internal/handler/agent"
	"github.com/zhouzirui/gold-agents/backend/internal/handler/chat"
	"github.com/zhouzirui/gold-agents/backend/internal/handler/stream"
	"github.com/zhouzirui/gold-agents/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/gold-agents/backend/internal/middleware"
	chatService "github.com/zhouzirui/gold-agents/backend/internal/service/chat"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(agents *agent.Registry, chatSvc *chatService.Service, metricsPath string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	r.Use(middleware.Heartbeat("/healthz"))

	streamHandler := stream.New(chatSvc)
	agentsHandler := agentHandler.New(agents, chatSvc, streamHandler)
	chatHandler := chat.New(chatSvc, agents)

	r.Route("/api", func(api chi.Router) {
		agentsHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
	})

	if metricsPath != "" {
		r.Method(http.MethodGet, metricsPath, metrics.Handler())
	}

	return r
}
