package main

import (
	"github.com/spf13/cobra"

	"majjen/internal/sched"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg sched.Config
)

// newRootCmd creates the root cobra command for the majjen CLI.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "majjen",
		Short: "majjen - single-threaded cooperative task scheduler",
		Long:  "majjen runs cooperative tasks on one goroutine, idling in a pluggable wait primitive between timers and readiness events.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = sched.Load(flagConfig); err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "config.yml", "Path to the YAML config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Shorthand for --log-level=debug")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, silent)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "console", "Log format (console, json)")

	root.AddCommand(newRunCmd())

	return root
}
