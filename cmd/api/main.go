package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/avolkov/intel-workbench/internal/adapters/http"
	"github.com/avolkov/intel-workbench/internal/bootstrap"
	"github.com/avolkov/intel-workbench/internal/config"
	"github.com/avolkov/intel-workbench/internal/observability/logging"
	"github.com/avolkov/intel-workbench/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	// The memory queue dispatches in-process, so the api binary is
	// also the consumer when no separate worker runs.
	if cfg.QueueDriver == "memory" {
		go func() {
			err := app.Queue.SubscribeEvidenceQueued(ctx, func(handlerCtx context.Context, documentID string) error {
				processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
				defer cancel()
				return app.ProcessUC.ProcessByID(processCtx, documentID)
			})
			if err != nil {
				slog.Error("in_process_consumer_stopped", "error", err)
			}
		}()
	}

	m := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(cfg, app.AuthUC, app.TasksUC, app.BriefUC, app.EvidenceUC, m).Handler()
	server := &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		log.Fatalf("api listen error: %v", err)
	}
	if cfg.APIMaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConns)
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}
