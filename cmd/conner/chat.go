package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/conner-go/internal/logger"
	"github.com/comigor/conner-go/internal/notify"
	"github.com/comigor/conner-go/internal/tui"
)

func init() {
	var resume bool
	var logFile string

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			// log lines would corrupt the alternate screen
			var out io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			logger.SetOutput(out)

			a := newApp(cfg)
			defer a.Close()

			notices := notify.NewCenter()
			defer notices.Close()

			if resume {
				if err := a.ctrl.Resume(); err != nil {
					logger.L.Error("resume failed", "error", err)
					notices.Error("Couldn't restore your last conversation.")
				}
			}
			if !a.store.Persistent() {
				notices.Info("Storage is unavailable. This conversation won't be saved.")
			}

			return tui.Run(tui.New(a.ctrl, a.registry, a.store, notices))
		},
	}
	chatCmd.Flags().BoolVarP(&resume, "resume", "r", false, "Restore the conversation from the previous run")
	chatCmd.Flags().StringVar(&logFile, "log-file", "", "Append logs to this file instead of discarding them")
	rootCmd.AddCommand(chatCmd)
}
