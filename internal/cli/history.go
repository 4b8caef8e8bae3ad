package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		check  string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent check runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			svc, cleanup := a.newService(cfg, nil)
			defer cleanup()

			runs, err := svc.ListRuns(check, limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tCHECK\tOUTCOME\tTOOK\tMESSAGE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Check, r.Outcome,
					r.Duration().Round(time.Millisecond), r.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&check, "check", "", "only show runs of this check (mapping, tables, crawl)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	cmd.AddCommand(a.historyPruneCmd())
	return cmd
}

func (a *app) historyPruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded runs older than the retention window",
		Long: `Deletes runs that started more than --older-than ago. Without the flag the
configured history.retention (default 720h) is used. watch prunes on its own
at start and on every scheduled run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("older-than") {
				olderThan = cfg.History.Retention
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}
			svc, cleanup := a.newService(cfg, nil)
			defer cleanup()

			n, err := svc.PruneHistory(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Pruned %d runs older than %s\n", n, olderThan)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "delete runs that started before now minus this duration")
	return cmd
}
