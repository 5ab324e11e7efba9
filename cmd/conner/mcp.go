package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/conner-go/internal/logger"
	"github.com/comigor/conner-go/internal/mcpserver"
)

func init() {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve session management tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout carries the protocol
			logger.SetOutput(os.Stderr)

			a := newApp(cfg)
			defer a.Close()

			return mcpserver.ServeStdio(mcpserver.NewHandler(a.registry, a.ctrl))
		},
	}
	rootCmd.AddCommand(mcpCmd)
}
