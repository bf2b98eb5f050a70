package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cosched/internal/config"
	"cosched/internal/task/schedule"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and list its tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigManager(flagConfig).Load()
			if err != nil {
				return fmt.Errorf("%s: %w", flagConfig, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:   %s\n", flagConfig)
			fmt.Fprintf(out, "Capacity: %d\n", cfg.Capacity())
			if cfg.Journal != nil && cfg.Journal.Driver != "" {
				fmt.Fprintf(out, "Journal:  %s %s\n", cfg.Journal.Driver, cfg.Journal.Path)
			}
			if cfg.Watchdog.Enabled {
				fmt.Fprintln(out, "Watchdog: enabled")
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tEVERY\tWARMUP\tACTION\tSTATE")
			for _, t := range cfg.Tasks {
				spec, _ := schedule.Parse(t.Schedule)
				warmup := t.Warmup
				if warmup == "" {
					warmup = "-"
				}
				state := "enabled"
				if t.Disabled {
					state = "disabled"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", t.Name, t.Kind, spec.Every, warmup, t.Action, state)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}
}
