package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/manualrag/internal/app"
	"github.com/dgallion1/manualrag/internal/config"
	"github.com/dgallion1/manualrag/internal/rag"
	"github.com/spf13/cobra"
)

type askFlags struct {
	json bool
}

func newAskCommand(e *env) *cobra.Command {
	flags := &askFlags{}

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := rag.ValidateQuestion(strings.Join(args, " "))
			if err != nil {
				return err
			}
			a, err := e.open(config.Config.ValidateQuery, app.ModeQuery)
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.Assistant.Ask(cmd.Context(), question, 0)
			out := cmd.OutOrStdout()
			if flags.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Fprintln(out, resp.Answer)
			return nil
		},
	}

	askCmd.Flags().BoolVar(&flags.json, "json", false, "Print the answer, sources and grounding flag as JSON")

	return askCmd
}
