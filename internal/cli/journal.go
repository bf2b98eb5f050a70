package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cosched/internal/config"
	"cosched/internal/journal"
	logx "cosched/pkg/logx"
)

func newJournalCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent task firings from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigManager(flagConfig).Load()
			if err != nil {
				return fmt.Errorf("%s: %w", flagConfig, err)
			}
			store, err := openJournal(cfg, logx.NewConsole(logConfig(cfg).Level))
			if err != nil {
				return err
			}
			if store == nil {
				return journal.ErrDisabled
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read journal: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No firings recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tTASK\tHANDLE\tTOOK\tFLAGS\tBOOT")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\ttask#%d\t%s\t%s\t%s\n",
					e.At.Local().Format(time.DateTime), e.Task, e.HandleID,
					time.Duration(e.TookMS)*time.Millisecond, flags(e), shortID(e.BootID))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func flags(e journal.Entry) string {
	s := ""
	if e.Repeating {
		s += "R"
	}
	if e.Rearmed {
		s += "A"
	}
	if e.Panicked {
		s += "P"
	}
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
