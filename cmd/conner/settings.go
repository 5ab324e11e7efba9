package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/conner-go/internal/chat"
)

func printSettings(s chat.Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

func init() {
	settingsCmd := &cobra.Command{Use: "settings", Short: "Show or change preferences"}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg)
			defer a.Close()

			s, err := a.store.Settings()
			if err != nil {
				return err
			}
			return printSettings(s)
		},
	}
	settingsCmd.AddCommand(showCmd)

	var (
		darkMode      bool
		messageLimit  int
		contextWindow int
		personality   string
		typingSpeed   int
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change one or more settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch chat.SettingsPatch
			flags := cmd.Flags()
			if flags.Changed("dark-mode") {
				patch.DarkMode = &darkMode
			}
			if flags.Changed("message-limit") {
				patch.MessageLimit = &messageLimit
			}
			if flags.Changed("context-window") {
				patch.ContextWindowSize = &contextWindow
			}
			if flags.Changed("personality") {
				p, err := chat.ParsePersonality(personality)
				if err != nil {
					return err
				}
				patch.AIPersonality = &p
			}
			if flags.Changed("typing-speed") {
				patch.TypingSpeed = &typingSpeed
			}

			a := newApp(cfg)
			defer a.Close()

			s, err := a.store.SaveSettings(patch)
			if err != nil {
				return err
			}
			return printSettings(s)
		},
	}
	setCmd.Flags().BoolVar(&darkMode, "dark-mode", false, "Use the dark palette")
	setCmd.Flags().IntVar(&messageLimit, "message-limit", 0, "Messages kept in the active chat history")
	setCmd.Flags().IntVar(&contextWindow, "context-window", 0, "Prior messages sent with each request")
	setCmd.Flags().StringVar(&personality, "personality", "", "Assistant style: supportive, reflective or logical")
	setCmd.Flags().IntVar(&typingSpeed, "typing-speed", 0, "Typing animation speed")
	settingsCmd.AddCommand(setCmd)

	rootCmd.AddCommand(settingsCmd)
}
