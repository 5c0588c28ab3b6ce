package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

func NewRoot() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "seatsched",
		Short:        "Books library seats for a group of readers, on demand, on a schedule or as seats free up",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] != "" {
				return nil
			}
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (yaml, toml, json or .env); the environment overrides it")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newServerCmd(a))
	root.AddCommand(newReserveCmd(a))
	root.AddCommand(newSnipeCmd(a))
	root.AddCommand(newRosterCmd(a))
	root.AddCommand(newScheduleCmd(a))
	root.AddCommand(newCheckinCmd(a))
	root.AddCommand(newHistoryCmd(a))
	root.AddCommand(newUserCmd(a))
	root.AddCommand(newPingCmd(a))
	return root
}

func Execute() {
	if err := NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version info",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "seatsched %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}
