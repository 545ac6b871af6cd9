package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/gold-agents/backend/internal/agent"
	"github.com/zhouzirui/gold-agents/backend/internal/agent/echo"
	"github.com/zhouzirui/gold-agents/backend/internal/agent/planner"
	"github.com/zhouzirui/gold-agents/backend/internal/agent/scheduler"
	"github.com/zhouzirui/gold-agents/backend/internal/config"
	"github.com/zhouzirui/gold-agents/backend/internal/handler"
	agentdef "github.com/zhouzirui/gold-agents/backend/internal/model/agent"
	"github.com/zhouzirui/gold-agents/backend/internal/model/document"
	"github.com/zhouzirui/gold-agents/backend/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	definitions, err := agentdef.LoadFile(cfg.Server.AgentsFile)
	if err != nil {
		log.Fatalf("failed to load agent definitions: %v", err)
	}

	catalog, err := document.LoadFile(cfg.Documents.File)
	if err != nil {
		log.Fatalf("failed to load documents: %v", err)
	}

	agents := []agent.Agent{newEchoAgent(definitions, cfg.Echo)}
	if maintenance := newSchedulerAgent(ctx, definitions, cfg, catalog); maintenance != nil {
		agents = append(agents, maintenance)
	}
	if repair := newPlannerAgent(ctx, definitions, cfg, catalog); repair != nil {
		agents = append(agents, repair)
	}

	registry, err := agent.NewRegistry(agents...)
	if err != nil {
		log.Fatalf("failed to register agents: %v", err)
	}
	for _, a := range registry.List() {
		log.Printf("agent %s registered", a.Name())
	}

	chatService := chat.NewService()
	router := handler.NewRouter(registry, chatService, cfg.Server.MetricsPath)

	startServer(ctx, cfg.Server, router)
}

func newEchoAgent(definitions *agentdef.Set, echoCfg config.EchoConfig) agent.Agent {
	opts := []echo.Option{echo.WithDelay(echoCfg.StreamDelay)}
	if def, ok := definitions.FindByName(agentdef.EchoAgent); ok {
		opts = append(opts, echo.WithName(def.Name), echo.WithDescription(def.Description))
	}
	return echo.New(opts...)
}

// newSchedulerAgent returns nil when the hosted model is not configured or
// cannot be reached; the echo agent keeps serving either way.
func newSchedulerAgent(ctx context.Context, definitions *agentdef.Set, cfg *config.Config, catalog *document.Catalog) agent.Agent {
	if !cfg.Scheduler.Configured() {
		log.Println("scheduler environment not set, skipping maintenance scheduler")
		return nil
	}
	if err := cfg.Scheduler.Validate(); err != nil {
		log.Printf("warning: maintenance scheduler disabled: %v", err)
		return nil
	}

	def, ok := definitions.FindByName(agentdef.SchedulerAgent)
	if !ok {
		log.Printf("warning: no definition for %s, skipping", agentdef.SchedulerAgent)
		return nil
	}

	chatModel, err := cfg.Scheduler.NewChatModel(ctx, cfg.AI)
	if err != nil {
		log.Printf("warning: failed to initialize chat model: %v", err)
		return nil
	}

	maintenance, err := scheduler.New(ctx, chatModel, scheduler.Config{
		Name:             def.Name,
		Description:      def.Description,
		Instructions:     def.Instructions,
		ProjectEndpoint:  cfg.Scheduler.ProjectEndpoint,
		ToolConnectionID: cfg.Scheduler.ToolConnectionID,
		Documents:        catalog,
	})
	if err != nil {
		log.Printf("warning: failed to initialize maintenance scheduler: %v", err)
		return nil
	}
	log.Printf("maintenance scheduler initialized (tools=%d)", len(maintenance.Tools()))
	return maintenance
}

// newPlannerAgent returns nil when no planner model is configured.
func newPlannerAgent(ctx context.Context, definitions *agentdef.Set, cfg *config.Config, catalog *document.Catalog) agent.Agent {
	if !cfg.Planner.Configured() {
		log.Println("planner model not set, skipping repair planner")
		return nil
	}

	def, ok := definitions.FindByName(agentdef.PlannerAgent)
	if !ok {
		log.Printf("warning: no definition for %s, skipping", agentdef.PlannerAgent)
		return nil
	}

	chatModel, err := cfg.Planner.NewChatModel(ctx, cfg.AI)
	if err != nil {
		log.Printf("warning: failed to initialize planner model: %v", err)
		return nil
	}

	repair, err := planner.New(ctx, chatModel, planner.Config{
		Name:         def.Name,
		Description:  def.Description,
		Instructions: def.Instructions,
		Account:      cfg.Documents.Account,
		Database:     cfg.Documents.Database,
		Inventory:    catalog,
	})
	if err != nil {
		log.Printf("warning: failed to initialize repair planner: %v", err)
		return nil
	}
	return repair
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("GOLD agent host listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
