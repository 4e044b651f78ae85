package cmd

import (
	"github.com/dgallion1/manualrag/internal/app"
	"github.com/dgallion1/manualrag/internal/config"
	"github.com/dgallion1/manualrag/internal/mcptools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func newMCPCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve ask_manual and search_manual over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(config.Config.ValidateQuery, app.ModeQuery)
			if err != nil {
				return err
			}
			defer a.Close()

			server := mcptools.NewServer(Version, a.Assistant, e.log.With("component", "mcp"))
			e.log.Info("mcp server ready", "transport", "stdio")
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
