package main

import (
	"context"
	"os"

	"github.com/dgallion1/manualrag/internal/app"
	"github.com/dgallion1/manualrag/internal/cmd"
	"github.com/dgallion1/manualrag/internal/config"
)

func main() {
	cfg := config.Load()
	log := app.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogJSON)

	if err := cmd.Serve(context.Background(), cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
