package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/avolkov/intel-workbench/internal/adapters/mcp"
	"github.com/avolkov/intel-workbench/internal/bootstrap"
	"github.com/avolkov/intel-workbench/internal/config"
	"github.com/avolkov/intel-workbench/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// Stdout carries the MCP protocol; route logs to stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	if cfg.MCPToken == "" {
		log.Fatal("MCP_TOKEN is required: log in over HTTP first and export the session token")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	srv := mcpadapter.New(app.AuthUC, app.TasksUC, app.BriefUC, app.EvidenceUC, cfg.MCPToken)
	if err := srv.ServeStdio(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
