package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/greengrowth/taxagent/internal/adapters/http"
	"github.com/greengrowth/taxagent/internal/bootstrap"
	"github.com/greengrowth/taxagent/internal/config"
	"github.com/greengrowth/taxagent/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("taxagent-api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}

	router := httpadapter.NewRouter(
		"taxagent-api",
		app.Processor,
		app.NewStore,
		app.FieldExtractor,
		app.Populators,
		app.Metrics,
		httpadapter.Limits{
			MaxFilesPerRequest: cfg.MaxFilesPerRequest,
			MaxFileSizeBytes:   int64(cfg.MaxFileSizeBytes),
			RequestTimeout:     time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeoutSeconds+10) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort, "provider", cfg.ExtractionProvider)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown error", "error", err)
	}
}
