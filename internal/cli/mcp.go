package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "pipecheck/internal/mcp"
)

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the checks as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			svc, cleanup := a.newService(cfg, nil)
			defer cleanup()

			return mcpserver.New(svc, a.logger, Version).ServeStdio(ctx, a.stdin, a.stdout)
		},
	}
}
