package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaot623/gogo/replay/internal/adapter/backend"
	"github.com/xiaot623/gogo/replay/internal/adapter/sim"
	"github.com/xiaot623/gogo/replay/internal/config"
	"github.com/xiaot623/gogo/replay/internal/domain"
	"github.com/xiaot623/gogo/replay/internal/hub"
	"github.com/xiaot623/gogo/replay/internal/service"
	handler "github.com/xiaot623/gogo/replay/internal/transport/http"
	"github.com/xiaot623/gogo/replay/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.LogLevel == "debug" {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}

	log.Printf("Starting replay engine...")
	log.Printf("Control Port: %d", cfg.ControlPort)
	log.Printf("Backend URL: %s", cfg.BackendURL)
	log.Printf("Max questions: %d, tick: %s", cfg.MaxQuestions, cfg.TickLength())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize session and its collaborators
	session := service.NewSession(nil)
	backendClient := backend.NewClient(cfg.BackendURL, session.ID, cfg.BackendTimeout())
	factory, err := sim.NewFactory(cfg.SimEngine)
	if err != nil {
		log.Fatalf("Failed to initialize simulation engine: %v", err)
	}

	// Initialize viewer hub
	viewerHub := hub.NewHub()
	go viewerHub.Run(ctx)
	view := hub.NewView(viewerHub, session.ID)

	// Initialize replay manager
	replay := service.NewReplayManager(ctx, session, factory, backendClient, view, view, service.ReplayConfig{
		MaxQuestions: cfg.MaxQuestions,
		TickLength:   cfg.TickLength(),
		Options:      domain.ParseLaunchOptions(cfg.Options),
	})
	go replay.Run(ctx)

	// Initialize control API and viewer WebSocket
	wsServer := ws.NewServer(cfg, viewerHub, replay, view)
	server := handler.NewServer(handler.NewHandler(replay, viewerHub), wsServer.HandleWebSocket)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.ControlPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start control server: %v", err)
		}
	}()
	log.Printf("Control API started on port %d (session %s)", cfg.ControlPort, session.ID)

	go func() {
		if err := replay.Start(ctx); err != nil {
			log.Printf("WARN: %v (retry with POST /v1/questions/next)", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down replay engine...")

	// Flush answers before anything else goes away
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), cfg.FlushTimeout())
	if err := replay.Close(flushCtx); err != nil {
		log.Printf("WARN: %v", err)
	}
	cancelFlush()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown control server gracefully: %v", err)
	}
	stop()

	log.Println("Replay engine stopped")
}
