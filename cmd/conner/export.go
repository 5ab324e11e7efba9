package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/comigor/conner-go/internal/export"
)

func init() {
	var formatFlag, outFlag string

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the active conversation as JSON or text",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			a := newApp(cfg)
			defer a.Close()

			acc, err := a.store.Account()
			if err != nil {
				return err
			}
			history, err := a.store.ChatHistory()
			if err != nil {
				return err
			}

			now := time.Now()
			data, err := export.Render(format, acc, history, now, time.Local)
			if err != nil {
				return err
			}
			if outFlag == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			path := outFlag
			if path == "" {
				path = export.Filename("chat", format, now)
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(os.Stdout, "Exported %d messages to %s\n", len(history), path)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&formatFlag, "format", "f", string(export.FormatJSON), "Export format: json or txt")
	exportCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Output path, or - for stdout (defaults to conner-chat-DATE.EXT)")
	rootCmd.AddCommand(exportCmd)
}
