package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ownership-engine/internal/errtrack"
	"github.com/danielpatrickdp/ownership-engine/internal/snapshot"
)

func newErrorsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Track inference errors and localize suspicious C features",
	}
	cmd.AddCommand(newErrorsRecordCmd(a), newErrorsReportCmd(a))
	return cmd
}

// withTracker restores the tracker snapshot, runs fn, and saves it back when
// fn reports a change.
func (a *app) withTracker(fn func(t *errtrack.Tracker) (changed bool, err error)) error {
	path, err := a.snapshotPath(errorsFile)
	if err != nil {
		return err
	}
	t, err := snapshot.LoadTracker(path)
	if err != nil {
		return err
	}
	changed, err := fn(t)
	if err != nil || !changed {
		return err
	}
	return snapshot.SaveTracker(path, t)
}

func newErrorsRecordCmd(a *app) *cobra.Command {
	var input string
	var successes []string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record inference errors (JSON) and successful feature sets",
		Example: `  ownctl errors record --input errors.json
  ownctl errors record --success malloc_free,size_param`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []errtrack.InferenceError
			if input != "" {
				if err := readJSON(input, &errs); err != nil {
					return err
				}
			}
			return a.withTracker(func(t *errtrack.Tracker) (bool, error) {
				for _, e := range errs {
					t.RecordError(e)
				}
				if len(successes) > 0 {
					t.RecordSuccess(successes...)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d errors, %d successes recorded\n", t.ErrorCount(), t.SuccessCount())
				return len(errs) > 0 || len(successes) > 0, nil
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON file of inference errors")
	cmd.Flags().StringSliceVar(&successes, "success", nil, "C features of one correct inference")
	return cmd
}

func newErrorsReportCmd(a *app) *cobra.Command {
	var out string
	var top int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the Tarantula fault localization report",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			return a.withTracker(func(t *errtrack.Tracker) (bool, error) {
				if err := writeReport(w, out, t.Markdown()); err != nil {
					return false, err
				}
				for _, fs := range t.TopSuspicious(top) {
					switch {
					case fs.IsHighlySuspicious():
						bad.Fprintf(w, "%-20s %.2f\n", fs.Feature, fs.Score)
					case fs.IsSuspicious():
						warn.Fprintf(w, "%-20s %.2f\n", fs.Feature, fs.Score)
					}
				}
				path, err := a.snapshotPath(suggestionsFile)
				if err != nil {
					return false, err
				}
				return false, snapshot.SaveSuggestions(path, t.Suggestions())
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the report here instead of stdout")
	cmd.Flags().IntVar(&top, "top", 5, "Highlight this many suspicious features")
	return cmd
}
