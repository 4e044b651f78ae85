package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dgallion1/manualrag/internal/app"
	"github.com/dgallion1/manualrag/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSectionsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sections [doc-id]",
		Short: "List indexed manuals, or the sections of one manual",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Listing needs no LLM, only a readable index.
			a, err := e.open(func(c config.Config) error { return nil }, app.ModeQuery)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if len(args) == 0 {
				manuals, err := a.Index.Manuals(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, color.HiBlackString("DOC ID\tFILE\tSECTIONS\tINGESTED"))
				for _, m := range manuals {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.DocID, m.Filename, m.Sections, m.IngestedAt.Local().Format("2006-01-02 15:04"))
				}
				return nil
			}

			recs, err := a.Index.Sections(ctx, args[0])
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				return fmt.Errorf("no sections for document %q", args[0])
			}
			fmt.Fprintln(tw, color.HiBlackString("#\tTITLE\tPAGES"))
			for _, r := range recs {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Position+1, r.Title, r.Pages)
			}
			return nil
		},
	}
}
