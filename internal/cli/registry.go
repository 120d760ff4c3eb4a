package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ownership-engine/internal/registry"
	"github.com/danielpatrickdp/ownership-engine/internal/telemetry"
)

func newRegistryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "registry",
		Aliases: []string{"reg"},
		Short:   "Inspect and roll back model versions",
	}
	cmd.AddCommand(newRegistryListCmd(a), newRegistryReportCmd(a), newRegistryRollbackCmd(a), newRegistryCheckCmd(a))
	return cmd
}

func newRegistryListCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered model versions, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeStore, err := a.loadRegistry()
			if err != nil {
				return err
			}
			defer closeStore()
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), mgr.History())
			}
			return printEntries(cmd.OutOrStdout(), mgr.History())
		},
	}
	cmd.Flags().BoolVarP(&jsonOut, "json", "j", false, "Output as JSON")
	return cmd
}

func newRegistryReportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the model version report as Markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeStore, err := a.loadRegistry()
			if err != nil {
				return err
			}
			defer closeStore()
			return writeReport(cmd.OutOrStdout(), out, mgr.Markdown())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the report here instead of stdout")
	return cmd
}

func newRegistryRollbackCmd(a *app) *cobra.Command {
	var to, reason, metrics string
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Revert to the previous model version, or to --to",
		Example: `  ownctl registry rollback --reason "accuracy regression"
  ownctl registry rollback --to 1.2.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollback(a, to, reason, metrics, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Explicit target version")
	cmd.Flags().StringVar(&reason, "reason", "Manual rollback", "Reason recorded with the rollback")
	cmd.Flags().StringVar(&metrics, "metrics", "", "Write prometheus metrics to this textfile")
	return cmd
}

func runRollback(a *app, to, reason, metrics string, w io.Writer) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	mgr, err := st.LoadRegistry(a.config.Registry)
	if err != nil {
		return err
	}

	var result registry.RollbackResult
	if to != "" {
		v, err := registry.ParseVersion(to)
		if err != nil {
			return err
		}
		result, err = mgr.RollbackTo(v, reason)
		if err != nil {
			return err
		}
	} else {
		result, err = mgr.Rollback(reason)
		if err != nil {
			return err
		}
	}
	if err := st.SaveRegistry(mgr); err != nil {
		return err
	}

	if metrics != "" {
		sink := telemetry.NewSink()
		sink.RecordRollback(result)
		if err := sink.WriteTextfile(metrics); err != nil {
			return err
		}
	}
	good.Fprintf(w, "rolled back %s → %s\n", result.From, result.To)
	return nil
}

// loadRegistry opens the store and restores the manager. The returned
// func closes the store.
func (a *app) loadRegistry() (*registry.Manager, func(), error) {
	st, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	mgr, err := st.LoadRegistry(a.config.Registry)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return mgr, func() { st.Close() }, nil
}

func printEntries(w io.Writer, entries []registry.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No model versions registered.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tACCURACY\tF1\tSAMPLES\tSTATUS\tRELEASED")
	for _, e := range entries {
		status := "inactive"
		switch {
		case e.IsActive:
			status = good.Sprint("active")
		case e.RolledBack:
			status = bad.Sprint("rolled back")
		}
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%d\t%s\t%s\n",
			e.Version, pct(e.Metrics.Accuracy), e.Metrics.F1, e.Metrics.SampleCount, status,
			e.ReleasedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
