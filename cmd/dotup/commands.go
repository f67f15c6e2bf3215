package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dotup-sh/dotup/pkg/config"
	"github.com/dotup-sh/dotup/pkg/docs"
	"github.com/dotup-sh/dotup/pkg/journal"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := journal.Open(journal.DefaultPath())
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()

		entries, err := j.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no runs recorded yet")
			return nil
		}

		for _, e := range entries {
			line := fmt.Sprintf("%s  %-7s  stage=%s",
				e.StartedAt.Local().Format("2006-01-02 15:04:05"), e.Outcome, e.Stage)
			if e.Platform != "" {
				line += "  platform=" + e.Platform
			}
			if e.Strategy != "" {
				line += "  strategy=" + e.Strategy
			}
			fmt.Println(line)
			if e.Detail != "" {
				fmt.Println("    " + e.Detail)
			}
		}
		return nil
	},
}

var docsCmd = &cobra.Command{
	Use:   "docs [topic]",
	Short: "Show documentation topics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Println("available topics:")
			for _, name := range docs.Topics() {
				fmt.Println("  " + name)
			}
			return nil
		}

		out, err := docs.Render(args[0])
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage dotup configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current configuration as a user config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load()
		if err != nil {
			return err
		}

		path := filepath.Join(settings.HomeDir, ".config", "dotup", config.UserConfigFile)
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Println("wrote " + path)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	configCmd.AddCommand(configInitCmd)
}
