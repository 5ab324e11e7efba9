package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/comigor/conner-go/internal/api"
	"github.com/comigor/conner-go/internal/logger"
)

func init() {
	var resume bool

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			if resume {
				if err := a.ctrl.Resume(); err != nil {
					logger.L.Warn("resume failed", "error", err)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := api.NewServer(a.ctrl, a.registry, a.store, a.accounts)
			return srv.Serve(ctx, net.JoinHostPort(cfg.Server.Host, cfg.Server.Port))
		},
	}
	serveCmd.Flags().BoolVarP(&resume, "resume", "r", false, "Restore the conversation from the previous run")
	rootCmd.AddCommand(serveCmd)
}
