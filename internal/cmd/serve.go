package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dgallion1/manualrag/internal/api"
	"github.com/dgallion1/manualrag/internal/app"
	"github.com/dgallion1/manualrag/internal/config"
	"github.com/dgallion1/manualrag/internal/pipeline"
	"github.com/spf13/cobra"
)

func newServeCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Services log JSON.
			log := app.NewLogger(os.Stdout, e.cfg.LogLevel, e.cfg.LogJSON)
			return Serve(cmd.Context(), e.cfg, log)
		},
	}
}

// WriteTimeout is the server write deadline for cfg.
func WriteTimeout(cfg config.Config) time.Duration {
	return max(cfg.AskTimeout+30*time.Second, 2*time.Minute)
}

// Serve runs the HTTP API until SIGINT/SIGTERM or ctx is done.
func Serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	a, err := app.New(cfg, log, app.ModeIngest)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := SignalContext(ctx)
	defer cancel()

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(a.Worker, cfg.WorkerCount, cfg.MaxQueueSize, cfg.JobTTL, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, a.Assistant, a.Index, a.Claude, log, cfg)

	// /api/ask is bounded by AskTimeout; the write deadline leaves room to
	// send the response after it fires.
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: WriteTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting manualrag", "port", cfg.Port, "index", cfg.IndexDir, "embedder", a.Embedder.Model())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		orch.Stop()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	err = httpServer.Shutdown(shutdownCtx)
	orch.Stop()
	return err
}
