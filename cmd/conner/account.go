package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	accountCmd := &cobra.Command{Use: "account", Short: "Manage the local account"}

	// signup
	var name, email, password string
	signupCmd := &cobra.Command{
		Use:   "signup",
		Short: "Create the local account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			acc, err := a.accounts.SignUp(name, email, password)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(os.Stdout, "Welcome, %s.\n", acc.Name)
			return nil
		},
	}
	signupCmd.Flags().StringVarP(&name, "name", "n", "", "Display name (defaults to the email's local part)")
	signupCmd.Flags().StringVarP(&email, "email", "e", "", "Email (required)")
	signupCmd.Flags().StringVarP(&password, "password", "p", "", "Password, at least 6 characters (required)")
	_ = signupCmd.MarkFlagRequired("email")
	_ = signupCmd.MarkFlagRequired("password")
	accountCmd.AddCommand(signupCmd)

	// signin
	var signinEmail, signinPassword string
	signinCmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in to the local account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			acc, err := a.accounts.SignIn(signinEmail, signinPassword)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(os.Stdout, "Welcome back, %s.\n", acc.Name)
			return nil
		},
	}
	signinCmd.Flags().StringVarP(&signinEmail, "email", "e", "", "Email (required)")
	signinCmd.Flags().StringVarP(&signinPassword, "password", "p", "", "Password (required)")
	_ = signinCmd.MarkFlagRequired("email")
	_ = signinCmd.MarkFlagRequired("password")
	accountCmd.AddCommand(signinCmd)

	// signout
	signoutCmd := &cobra.Command{
		Use:   "signout",
		Short: "Sign out, keeping the account and conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			if err := a.accounts.SignOut(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "Signed out.")
			return nil
		},
	}
	accountCmd.AddCommand(signoutCmd)

	// delete
	var yes bool
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the account and every stored record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the account without --yes")
			}
			a := newApp(cfg)
			defer a.Close()

			if err := a.accounts.Delete(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "Account and data deleted.")
			return nil
		},
	}
	deleteCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	accountCmd.AddCommand(deleteCmd)

	// whoami
	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			acc, err := a.accounts.Current()
			if err != nil {
				return err
			}
			if acc == nil {
				_, _ = fmt.Fprintln(os.Stdout, "Not signed in.")
				return nil
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s <%s>\n", acc.Name, acc.Email)
			return nil
		},
	}
	accountCmd.AddCommand(whoamiCmd)

	rootCmd.AddCommand(accountCmd)
}
