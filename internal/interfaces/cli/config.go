package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/seat-scheduler/internal/infrastructure/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigValidateCmd(a))
	return cmd
}

func newConfigValidateCmd(a *app) *cobra.Command {
	var server bool
	c := &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report every problem",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err == nil && server {
				err = cfg.Require(config.NeedDatabase, config.NeedSessions, config.NeedCredKey)
			}
			if err != nil {
				return fmt.Errorf("config invalid:\n%w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "config ok")
			fmt.Fprintf(out, "  library:   %s (floor %s)\n", cfg.Library.BaseURL, cfg.Library.FloorID)
			fmt.Fprintf(out, "  zones:     %s\n", strings.Join(cfg.Booking.ZonePriority, ", "))
			fmt.Fprintf(out, "  horizon:   %d day(s), %s\n", cfg.Booking.DaysAhead, cfg.Booking.Timezone)
			fmt.Fprintf(out, "  schedule:  %q enabled=%t\n", cfg.Schedule.Cron, cfg.Schedule.Enabled)
			fmt.Fprintf(out, "  database:  %t\n", cfg.DatabaseURL != "")
			fmt.Fprintf(out, "  redis:     %t\n", cfg.RedisURL != "")
			return nil
		},
	}
	c.Flags().BoolVar(&server, "server", false, "also require the settings the server command needs")
	return c
}
