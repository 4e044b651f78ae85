// Package cmd is the manualrag command tree.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/manualrag/internal/app"
	"github.com/dgallion1/manualrag/internal/config"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// SignalContext is canceled on SIGINT or SIGTERM so long-running commands
// stop between elements instead of dying mid-summary.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// rootFlags override selected environment settings.
type rootFlags struct {
	indexDir  string
	imageDir  string
	firstPage int
	lastPage  int
	k         int
	verbose   bool
}

// apply copies the flags the user set onto cfg.
func (f *rootFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("index-dir") {
		cfg.IndexDir = f.indexDir
	}
	if flags.Changed("image-dir") {
		cfg.ImageDir = f.imageDir
	}
	if flags.Changed("first-page") {
		cfg.PageFirst = f.firstPage
	}
	if flags.Changed("last-page") {
		cfg.PageLast = f.lastPage
	}
	if flags.Changed("k") {
		cfg.RetrievalK = f.k
	}
	if f.verbose {
		cfg.LogLevel = slog.LevelDebug
	}
}

// env carries the loaded configuration to subcommands.
type env struct {
	flags *rootFlags
	cfg   config.Config
	log   *slog.Logger
}

// load reads the environment, applies flag overrides and builds a stderr
// logger; stdout belongs to the conversation and the MCP transport.
func (e *env) load(cmd *cobra.Command) {
	e.cfg = config.Load()
	e.flags.apply(cmd, &e.cfg)
	e.log = app.NewLogger(os.Stderr, e.cfg.LogLevel, false)
}

// open validates cfg for the command's role and builds the App.
func (e *env) open(validate func(config.Config) error, mode app.Mode) (*app.App, error) {
	if err := validate(e.cfg); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return app.New(e.cfg, e.log, mode)
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&env{flags: &rootFlags{}})
}

func newRootCommand(e *env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "manualrag <command> [options]",
		Short:   "Ask questions about technical manuals using section-aware retrieval",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			e.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newIngestCommand(e))
	rootCmd.AddCommand(newChatCommand(e))
	rootCmd.AddCommand(newAskCommand(e))
	rootCmd.AddCommand(newSectionsCommand(e))
	rootCmd.AddCommand(newServeCommand(e))
	rootCmd.AddCommand(newMCPCommand(e))

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&e.flags.indexDir, "index-dir", "", "Section index directory (overrides INDEX_DIR)")
	pf.StringVar(&e.flags.imageDir, "image-dir", "", "Directory of partitioner-extracted images (overrides IMAGE_DIR)")
	pf.IntVar(&e.flags.firstPage, "first-page", 0, "First page to ingest (overrides PAGE_FIRST)")
	pf.IntVar(&e.flags.lastPage, "last-page", 0, "Last page to ingest (overrides PAGE_LAST)")
	pf.IntVar(&e.flags.k, "k", 0, "Sections retrieved per question (overrides RETRIEVAL_K)")
	pf.BoolVarP(&e.flags.verbose, "verbose", "v", false, "Enable debug logging")

	return rootCmd
}
