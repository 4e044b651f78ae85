package main

import (
	"context"
	"os"

	"github.com/dgallion1/manualrag/internal/app"
	"github.com/dgallion1/manualrag/internal/cmd"
	"github.com/fatih/color"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	ctx, stop := cmd.SignalContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		color.Red("Error: %v", err)
		if app.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
