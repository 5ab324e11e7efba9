package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/conner-go/internal/config"
	"github.com/comigor/conner-go/internal/logger"
)

var (
	configFlag   string
	logLevelFlag string
	cfg          *config.Config

	rootCmd = &cobra.Command{
		Use:           "conner",
		Short:         "Conner, a reflective companion for mental well-being",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFlag != "" {
				if err := os.Setenv("CONFIG_PATH", configFlag); err != nil {
					return err
				}
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded

			level := cfg.Log.Level
			if logLevelFlag != "" {
				level = logLevelFlag
			}
			logger.SetLevel(level)
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to the config file (defaults to ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevelFlag, "log-level", "l", "", "Log level: debug, info, warn or error")
}
