package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dotup-sh/dotup/internal/version"
	"github.com/dotup-sh/dotup/pkg/acquire"
	"github.com/dotup-sh/dotup/pkg/config"
	"github.com/dotup-sh/dotup/pkg/dispatch"
	"github.com/dotup-sh/dotup/pkg/journal"
	"github.com/dotup-sh/dotup/pkg/logging"
	"github.com/dotup-sh/dotup/pkg/orchestrator"
	"github.com/dotup-sh/dotup/pkg/platform"
	"github.com/dotup-sh/dotup/pkg/report"
)

var (
	verbosity int
	dryRun    bool

	// exitCode carries a propagated downstream exit status to main.
	exitCode int

	rootCmd = &cobra.Command{
		Use:   "dotup",
		Short: "A self-updating dotfiles installer",
		Long: `dotup converges a machine to your dotfiles: it keeps a local working
copy of the source tree current, detects the host platform, and hands over
to the platform's entry-point script. Safe to re-run any number of times.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bare `dotup` behaves like `dotup run`.
			return runFull(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the CLI. The returned exit code already accounts for
// propagated downstream script exit statuses.
func Execute() (int, error) {
	err := rootCmd.Execute()
	if err != nil && exitCode == 0 {
		exitCode = 1
	}
	return exitCode, err
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report decisions without changing anything")
	updateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the update strategy without changing anything")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// runFull performs the acquisition -> detection -> dispatch sequence.
func runFull(ctx context.Context) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	reporter := report.New()

	var j *journal.Journal
	if j, err = journal.Open(journal.DefaultPath()); err != nil {
		log.Warn().Err(err).Msg("Run journal unavailable, continuing without it")
		j = nil
	} else {
		defer func() { _ = j.Close() }()
	}

	o := orchestrator.New(orchestrator.Options{
		Reporter: reporter,
		Acquirer: acquire.New(acquire.Options{
			Settings: settings,
			Reporter: reporter,
		}),
		Detector:   platform.NewDetector(),
		Dispatcher: dispatch.New(settings.WorkingCopyPath(), settings.EntryPoints),
		Journal:    j,
		DryRun:     dryRun,
	})

	result := o.Run(ctx)
	exitCode = result.ExitCode
	return result.Err
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Update the working copy and run the platform setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFull(cmd.Context())
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the working copy without running platform setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load()
		if err != nil {
			return err
		}

		reporter := report.New()
		manager := acquire.New(acquire.Options{
			Settings: settings,
			Reporter: reporter,
		})

		if dryRun {
			reporter.Info("dry-run: would acquire via %s strategy", manager.Plan())
			return nil
		}

		_, err = manager.Acquire()
		return err
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the detected host platform",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(platform.NewDetector().Detect())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dotup version %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
	},
}
