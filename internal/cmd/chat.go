package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgallion1/manualrag/internal/app"
	"github.com/dgallion1/manualrag/internal/config"
	"github.com/dgallion1/manualrag/internal/rag"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newChatCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session; type 'sair' to leave",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(config.Config.ValidateQuery, app.ModeQuery)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			n, _ := a.Index.Count()
			fmt.Fprintf(out, "Manual assistant ready %s\n", color.HiBlackString("(%d sections indexed)", n))
			fmt.Fprintf(out, "Ask a question, or type %s to leave.\n\n", color.CyanString("sair"))

			return chatLoop(cmd.Context(), cmd.InOrStdin(), out, a.Assistant.Respond)
		},
	}
}

// chatLoop reads one question per line until EOF or the exit command.
// Empty lines are ignored and answers never end the session.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, respond func(context.Context, string) string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprintf(out, "%s ", color.GreenString("You:"))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()
		if rag.IsExitCommand(line) {
			fmt.Fprintln(out, "Bye.")
			return nil
		}

		question, err := rag.ValidateQuestion(line)
		if errors.Is(err, rag.ErrEmptyQuestion) {
			continue
		}
		if err != nil {
			fmt.Fprintln(out, color.RedString("%v", err))
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		answer := respond(ctx, question)
		fmt.Fprintf(out, "\n%s %s\n\n", color.CyanString("Assistant:"), answer)
	}
}
