package cmd

import (
	"fmt"

	"github.com/dgallion1/manualrag/internal/app"
	"github.com/dgallion1/manualrag/internal/config"
	"github.com/dgallion1/manualrag/internal/pipeline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type ingestFlags struct {
	docID string
}

func newIngestCommand(e *env) *cobra.Command {
	flags := &ingestFlags{}

	ingestCmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Partition, chunk, summarize and index manuals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.docID != "" && len(args) > 1 {
				return fmt.Errorf("--doc-id applies to a single file")
			}
			a, err := e.open(config.Config.ValidateIngest, app.ModeIngest)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, path := range args {
				job, err := a.IngestFile(cmd.Context(), path, flags.docID)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				snap := job.Snapshot()
				status := color.GreenString(string(snap.Status))
				if snap.Status == pipeline.StatusPartial {
					status = color.YellowString(string(snap.Status))
				}
				fmt.Fprintf(out, "%s %s %s\n", status, color.CyanString(snap.Filename), color.HiBlackString("(doc %s)", snap.DocID))
				fmt.Fprintf(out, "  elements: %d  sections: %d  tables: %d  images: %d  duplicate images: %d  summary failures: %d\n",
					snap.Progress.Elements, snap.Progress.Sections, snap.Progress.TablesSummarized,
					snap.Progress.ImagesSummarized, snap.Progress.DuplicateImages, snap.Progress.SummaryFailures)
			}
			return nil
		},
	}

	ingestCmd.Flags().StringVar(&flags.docID, "doc-id", "", "Document ID (default: derived from the file content)")

	return ingestCmd
}
