package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	sessionsCmd := &cobra.Command{Use: "sessions", Short: "Manage saved conversations"}

	// list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved conversations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			sessions, err := a.registry.Recent()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				_, _ = fmt.Fprintln(os.Stdout, "No saved conversations.")
				return nil
			}
			current, _ := a.store.CurrentSession()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED\t")
			for _, s := range sessions {
				marker := ""
				if s.ID == current {
					marker = "*"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ID, s.Title, s.MessageCount,
					s.UpdatedAt.Local().Format("2006-01-02 15:04"), marker)
			}
			return w.Flush()
		},
	}
	sessionsCmd.AddCommand(listCmd)

	// rename
	renameCmd := &cobra.Command{
		Use:   "rename SESSION_ID TITLE",
		Short: "Rename a saved conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			sess, err := a.registry.Get(args[0])
			if err != nil {
				return err
			}
			if sess == nil {
				return fmt.Errorf("session %s not found", args[0])
			}
			if err := a.registry.Rename(args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(os.Stdout, "Renamed %s\n", args[0])
			return nil
		},
	}
	sessionsCmd.AddCommand(renameCmd)

	// delete
	deleteCmd := &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "Delete a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			if err := a.registry.Delete(args[0]); err != nil {
				return err
			}
			// deleting the current session also clears the persisted chat
			if current, err := a.store.CurrentSession(); err == nil && current == args[0] {
				if err := a.store.ClearChatHistory(); err != nil {
					return err
				}
				if err := a.store.SetCurrentSession(""); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(os.Stdout, "Deleted %s\n", args[0])
			return nil
		},
	}
	sessionsCmd.AddCommand(deleteCmd)

	// clear
	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete every conversation without --yes")
			}
			a := newApp(cfg)
			defer a.Close()

			if err := a.ctrl.ClearAllSessions(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "All conversations deleted.")
			return nil
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	sessionsCmd.AddCommand(clearCmd)

	rootCmd.AddCommand(sessionsCmd)
}
